// Package session holds the process-wide arena of research sessions, addressed
// by opaque id and evicted after an idle TTL.
package session

import (
	"context"
	"sync"
	"time"

	"slingshot-be/pkg/research/domain"
)

// Session is the record of one research request. Identity fields are fixed at
// creation; everything else is guarded by mu and written only by the session's
// own pipeline run.
type Session struct {
	ID        string
	Mode      domain.Mode
	Query     string
	Subject   string
	UserID    string
	Options   domain.Options
	CreatedAt time.Time

	mu        sync.RWMutex
	status    domain.Status
	steps     []domain.ThoughtStep
	citations []domain.Citation
	report    *domain.Report
	ext       domain.Extensions
	errMsg    string
	updatedAt time.Time
	run       *run
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
	reason string
}

func New(id string, mode domain.Mode, query, subject string, opts domain.Options) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Mode:      mode,
		Query:     query,
		Subject:   subject,
		UserID:    opts.UserID,
		Options:   opts,
		CreatedAt: now,
		status:    domain.StatusPlanning,
		updatedAt: now,
	}
}

// Restore rebuilds a session from an archived snapshot so a failed run can be
// started again with its steps and citations. opts replace the archived ones.
func Restore(snap domain.Snapshot, opts domain.Options) *Session {
	s := New(snap.ID, snap.Mode, snap.Query, snap.Subject, opts)
	s.UserID = snap.UserID
	s.CreatedAt = snap.CreatedAt
	s.status = snap.Status
	s.steps = append([]domain.ThoughtStep(nil), snap.Steps...)
	s.citations = append([]domain.Citation(nil), snap.Citations...)
	s.errMsg = snap.Error
	return s
}

// Begin claims the session for a new pipeline run. A session that already
// runs is busy; a completed one is final. A failed session is reset to
// planning and keeps its steps and citations.
func (s *Session) Begin(cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusComplete {
		return domain.ErrSessionFinalized
	}
	if s.run != nil {
		return domain.ErrSessionBusy
	}
	switch s.status {
	case domain.StatusError:
		s.status = domain.StatusPlanning
		s.errMsg = ""
		s.ext = domain.Extensions{}
	case domain.StatusPlanning:
	default:
		return domain.ErrSessionBusy
	}
	s.run = &run{cancel: cancel, done: make(chan struct{})}
	s.updatedAt = time.Now().UTC()
	return nil
}

// End releases the run claimed by Begin.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return
	}
	s.run.cancel()
	close(s.run.done)
	s.run = nil
}

// RequestStop cancels the active run. The returned channel is closed once the
// run has ended; ok is false when nothing is running.
func (s *Session) RequestStop(reason string) (done <-chan struct{}, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return nil, false
	}
	if s.run.reason == "" {
		s.run.reason = reason
	}
	s.run.cancel()
	return s.run.done, true
}

// StopReason returns the reason given to RequestStop for the active run.
func (s *Session) StopReason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.run == nil {
		return ""
	}
	return s.run.reason
}

func (s *Session) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run != nil
}

func (s *Session) Status() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus moves a running session to a non-terminal state.
func (s *Session) SetStatus(st domain.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return
	}
	s.status = st
	s.updatedAt = time.Now().UTC()
}

// AppendStep records an emitted step together with the citation list as of
// that step.
func (s *Session) AppendStep(step domain.ThoughtStep, citations []domain.Citation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step)
	s.citations = citations
	s.updatedAt = time.Now().UTC()
}

// Complete finalizes the session. It reports false if the session already
// reached a terminal state.
func (s *Session) Complete(r domain.Report, ext domain.Extensions, citations []domain.Citation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return false
	}
	s.status = domain.StatusComplete
	s.report = &r
	s.ext = ext
	s.citations = citations
	s.updatedAt = time.Now().UTC()
	return true
}

// Fail moves the session to error, keeping every step emitted so far.
func (s *Session) Fail(msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return false
	}
	s.status = domain.StatusError
	s.errMsg = msg
	s.updatedAt = time.Now().UTC()
	return true
}

// Snapshot returns a copy safe to hand to other goroutines.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := domain.Snapshot{
		ID:         s.ID,
		Mode:       s.Mode,
		Query:      s.Query,
		Ticker:     s.tickerLocked(),
		Subject:    s.Subject,
		UserID:     s.UserID,
		Status:     s.status,
		Steps:      append([]domain.ThoughtStep(nil), s.steps...),
		Citations:  append([]domain.Citation(nil), s.citations...),
		Extensions: s.ext,
		Error:      s.errMsg,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.updatedAt,
	}
	if s.report != nil {
		r := *s.report
		snap.Report = &r
	}
	return snap
}

func (s *Session) tickerLocked() string {
	if s.Mode == domain.ModeResearch {
		return s.Subject
	}
	return ""
}
