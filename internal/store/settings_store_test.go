package store

import (
	"slices"
	"testing"
)

func TestNotificationUserHelpers(t *testing.T) {
	ids := []int64{1, 2}

	got := WithNotificationUser(ids, 2)
	if !slices.Equal(got, []int64{1, 2}) {
		t.Errorf("adding existing id changed list: %v", got)
	}

	got = WithNotificationUser(ids, 3)
	if !slices.Equal(got, []int64{1, 2, 3}) {
		t.Errorf("add = %v", got)
	}
	if len(ids) != 2 {
		t.Error("input slice must not be modified")
	}

	got = WithoutNotificationUser([]int64{1, 2, 1}, 1)
	if !slices.Equal(got, []int64{2}) {
		t.Errorf("remove = %v", got)
	}
}

func TestDecodeSettings(t *testing.T) {
	d, err := DecodeSettings(nil)
	if err != nil || d.ForeignAgentBlurb != "" {
		t.Fatalf("empty decode = %+v, %v", d, err)
	}

	d, err = DecodeSettings([]byte(`{"foreignAgentBlurb":"18+","notificationUserIds":[5,6]}`))
	if err != nil {
		t.Fatal(err)
	}
	if d.ForeignAgentBlurb != "18+" || !slices.Equal(d.NotificationUserIDs, []int64{5, 6}) {
		t.Errorf("decoded = %+v", d)
	}

	if _, err := DecodeSettings([]byte("{broken")); err == nil {
		t.Error("expected error for malformed json")
	}
}
