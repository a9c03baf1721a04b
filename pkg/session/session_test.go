package session_test

import (
	"reflect"
	"testing"

	"github.com/Dicklesworthstone/loopline/pkg/model"
	"github.com/Dicklesworthstone/loopline/pkg/session"
)

func TestFlagsClearedOnReset(t *testing.T) {
	s := session.New()
	if !s.AcquireFlag("key") {
		t.Fatal("first acquisition should report new")
	}
	if s.AcquireFlag("key") {
		t.Error("second acquisition should not report new")
	}
	if s.AcquireFlag("") {
		t.Error("empty flag must be ignored")
	}

	s.Reset()
	if s.LoopCount() != 1 {
		t.Errorf("LoopCount = %d, want 1", s.LoopCount())
	}
	if len(s.Flags()) != 0 {
		t.Errorf("flags should be cleared, got %v", s.FlagNames())
	}
}

func TestUnlocksSurviveReset(t *testing.T) {
	s := session.New()
	u := model.Unlock{TimeID: "01-01-08-30", Variant: 1, Label: "open drawer"}
	s.RecordUnlock(u)
	s.RecordUnlock(model.Unlock{TimeID: "01-01", Variant: 0, Label: "x"})
	if s.RecordUnlock(u) {
		t.Error("duplicate unlock reported as new")
	}

	s.Reset()
	s.Reset()

	if !s.HasUnlock(u) {
		t.Error("unlock lost across reset")
	}
	got := s.Snapshot()
	want := session.Snapshot{
		LoopCount: 2,
		Flags:     []string{},
		Unlocks:   []string{"01-01-08-30:1:(open drawer)", "01-01:0:(x)"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot = %+v, want %+v", got, want)
	}
}
