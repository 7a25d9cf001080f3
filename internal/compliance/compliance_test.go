package compliance

import (
	"testing"

	"github.com/mymmrac/telego"
)

func TestMessageSatisfiesBlurb(t *testing.T) {
	tests := []struct {
		name  string
		msg   *telego.Message
		blurb string
		want  bool
	}{
		{"text contains blurb", &telego.Message{Text: "Hello 18+"}, "18+", true},
		{"caption without blurb", &telego.Message{Caption: "no disclosure"}, "18+", false},
		{"caption contains blurb", &telego.Message{Caption: "photo 18+ here"}, "18+", true},
		{"case sensitive", &telego.Message{Text: "иноагент"}, "ИНОАГЕНТ", false},
		{"empty message", &telego.Message{}, "18+", false},
		{"nil message", nil, "18+", false},
		{"text takes precedence over caption", &telego.Message{Text: "plain", Caption: "18+"}, "18+", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MessageSatisfiesBlurb(tt.msg, tt.blurb); got != tt.want {
				t.Errorf("MessageSatisfiesBlurb() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroupSatisfiesBlurb_AnyOf(t *testing.T) {
	const blurb = "REQUIRED"

	withSecond := []*telego.Message{
		{MessageID: 1},
		{MessageID: 2, Caption: "caption with REQUIRED text"},
		{MessageID: 3},
	}
	if !GroupSatisfiesBlurb(withSecond, blurb) {
		t.Error("expected group with blurb on the second item to be compliant")
	}

	none := []*telego.Message{
		{MessageID: 1, Caption: "nothing"},
		{MessageID: 2},
		{MessageID: 3, Text: "still nothing"},
	}
	if GroupSatisfiesBlurb(none, blurb) {
		t.Error("expected group without blurb to be rejected")
	}

	if GroupSatisfiesBlurb(nil, blurb) {
		t.Error("expected empty group to be rejected")
	}

	if !GroupValidator(blurb)(withSecond) {
		t.Error("GroupValidator should agree with GroupSatisfiesBlurb")
	}
}

func TestExtractActor(t *testing.T) {
	fromUser := &telego.Message{From: &telego.User{ID: 42, FirstName: "Ivan", Username: "ivan"}}
	a := ExtractActor(fromUser)
	if a == nil || a.ID != 42 || a.DisplayName != "Ivan" || a.Username != "ivan" {
		t.Fatalf("unexpected actor from user: %+v", a)
	}
	if !a.HasID() {
		t.Error("actor with user should have an id")
	}

	signed := &telego.Message{AuthorSignature: "Editor"}
	a = ExtractActor(signed)
	if a == nil || a.DisplayName != "Editor" || a.HasID() {
		t.Fatalf("unexpected actor from signature: %+v", a)
	}

	if ExtractActor(&telego.Message{}) != nil {
		t.Error("expected nil actor for anonymous message")
	}
}
