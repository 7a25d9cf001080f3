package channels

import (
	"context"
	"errors"
	"testing"
)

type stubChannel struct {
	name     string
	startErr error
	running  bool
	stopped  bool
}

func (s *stubChannel) Name() string { return s.name }

func (s *stubChannel) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.running = true
	return nil
}

func (s *stubChannel) Stop(context.Context) error {
	s.running = false
	s.stopped = true
	return nil
}

func (s *stubChannel) IsRunning() bool { return s.running }

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager()
	if m.Healthy() {
		t.Fatal("empty manager must not be healthy")
	}

	tg := &stubChannel{name: "telegram"}
	m.RegisterChannel(tg.Name(), tg)

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if !m.Healthy() {
		t.Fatal("started manager should be healthy")
	}
	if st := m.GetStatus()["telegram"]; !st.Running {
		t.Errorf("status = %+v", st)
	}
	if got, ok := m.GetChannel("telegram"); !ok || got != tg {
		t.Error("GetChannel did not return the registered channel")
	}

	if err := m.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
	if !tg.stopped || m.Healthy() {
		t.Error("channel not stopped")
	}
}

func TestManager_StartFailureIsReported(t *testing.T) {
	boom := errors.New("boom")
	m := NewManager()
	bad := &stubChannel{name: "bad", startErr: boom}
	good := &stubChannel{name: "good"}
	m.RegisterChannel(bad.Name(), bad)
	m.RegisterChannel(good.Name(), good)

	err := m.StartAll(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("StartAll error = %v, want wrapped boom", err)
	}
	if !good.running {
		t.Error("healthy channel should still start")
	}
	if m.Healthy() {
		t.Error("manager with a stopped channel must not be healthy")
	}
}
