package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"slingshot-be/pkg/research/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(id string) *Session {
	return New(id, domain.ModeResearch, "Analyze TCS", "TCS", domain.Options{UserID: "u1"})
}

func TestBeginRejectsConcurrentRun(t *testing.T) {
	s := newSession("a")
	_, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Begin(cancel))
	assert.True(t, s.Running())

	err := s.Begin(func() {})
	assert.True(t, errors.Is(err, domain.ErrSessionBusy))

	s.End()
	assert.False(t, s.Running())
}

func TestBeginAfterTerminal(t *testing.T) {
	s := newSession("a")
	require.NoError(t, s.Begin(func() {}))
	s.AppendStep(domain.ThoughtStep{StepNumber: 1}, nil)
	require.True(t, s.Fail("boom"))
	s.End()

	// A failed session may run again and keeps its steps.
	require.NoError(t, s.Begin(func() {}))
	snap := s.Snapshot()
	assert.Equal(t, domain.StatusPlanning, snap.Status)
	assert.Empty(t, snap.Error)
	assert.Len(t, snap.Steps, 1)

	require.True(t, s.Complete(domain.Report{ExecutiveSummary: "x"}, domain.Extensions{}, nil))
	s.End()
	assert.ErrorIs(t, s.Begin(func() {}), domain.ErrSessionFinalized)
}

func TestTerminalStateIsFinal(t *testing.T) {
	s := newSession("a")
	require.True(t, s.Complete(domain.Report{ExecutiveSummary: "x"}, domain.Extensions{}, nil))
	assert.False(t, s.Fail("late"))
	s.SetStatus(domain.StatusResearching)

	snap := s.Snapshot()
	assert.Equal(t, domain.StatusComplete, snap.Status)
	require.NotNil(t, snap.Report)
	assert.Equal(t, "x", snap.Report.ExecutiveSummary)
}

func TestRequestStop(t *testing.T) {
	s := newSession("a")
	_, ok := s.RequestStop("user")
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Begin(cancel))
	done, ok := s.RequestStop("user")
	require.True(t, ok)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Equal(t, "user", s.StopReason())

	s.RequestStop("second")
	assert.Equal(t, "user", s.StopReason())

	s.End()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("done not closed")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := newSession("a")
	s.AppendStep(domain.ThoughtStep{StepNumber: 1, Title: "one"}, []domain.Citation{{Key: "cite-1"}})
	snap := s.Snapshot()
	snap.Steps[0].Title = "changed"
	snap.Citations[0].Key = "x"

	again := s.Snapshot()
	assert.Equal(t, "one", again.Steps[0].Title)
	assert.Equal(t, "cite-1", again.Citations[0].Key)
	assert.Equal(t, "TCS", again.Ticker)
	assert.Equal(t, "u1", again.UserID)
}

func TestRestoreFromArchive(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	snap := domain.Snapshot{
		ID: "a", Mode: domain.ModeResearch, Query: "Analyze TCS", Subject: "TCS", UserID: "u1",
		Status: domain.StatusError, Error: "all tools failed", CreatedAt: created,
		Steps:     []domain.ThoughtStep{{StepNumber: 1, StepType: domain.StepPlanning}},
		Citations: []domain.Citation{{Key: "cite-1", SourceType: domain.SourceScreener, SourceName: "x"}},
	}

	s := Restore(snap, domain.Options{UserID: "u1", MaxIterations: 3})
	got := s.Snapshot()
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Equal(t, created, got.CreatedAt)
	assert.Len(t, got.Steps, 1)
	assert.Len(t, got.Citations, 1)
	assert.Equal(t, 3, s.Options.MaxIterations)

	require.NoError(t, s.Begin(func() {}))
	got = s.Snapshot()
	assert.Equal(t, domain.StatusPlanning, got.Status)
	assert.Empty(t, got.Error)
	assert.Len(t, got.Steps, 1)
}
