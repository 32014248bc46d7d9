// Package pipeline drives research sessions through planning, research,
// analysis, reflection and reporting, streaming every step to subscribers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"slingshot-be/internal/pkg/logger"
	"slingshot-be/pkg/research/broadcast"
	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/report"
	"slingshot-be/pkg/research/session"
	"slingshot-be/pkg/research/step"
	"slingshot-be/pkg/research/tool/catalog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const module = "Pipeline"

// archiveTimeout bounds archive reads made while claiming a session id.
const archiveTimeout = 5 * time.Second

// Limits on request options.
const (
	DefaultRetryBudget = 2
	MaxIterations      = 5
	MaxQueryLength     = 500
)

type Config struct {
	// RetryBudget is the number of extra research passes reflection may
	// request before the session fails.
	RetryBudget int
	// RetryWait is the pause before re-entering research.
	RetryWait time.Duration
}

// Request starts or restarts a session.
type Request struct {
	Mode      domain.Mode
	Query     string
	SessionID string
	Options   domain.Options
}

type Orchestrator struct {
	cfg      Config
	sessions *session.Registry
	events   *broadcast.Broadcaster
	exec     *step.Executor
	logger   logger.ILogger
	archive  Archive

	obsMu     sync.RWMutex
	observers []Observer

	baseCtx  context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup
}

func New(cfg Config, sessions *session.Registry, events *broadcast.Broadcaster, exec *step.Executor, log logger.ILogger) *Orchestrator {
	if cfg.RetryBudget < 0 {
		cfg.RetryBudget = DefaultRetryBudget
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:      cfg,
		sessions: sessions,
		events:   events,
		exec:     exec,
		logger:   log,
		baseCtx:  ctx,
		shutdown: cancel,
	}
	sessions.OnEvicted(func(s *session.Session) {
		events.Drop(s.ID)
	})
	return o
}

// Observe registers an observer for every later session.
func (o *Orchestrator) Observe(obs Observer) {
	o.obsMu.Lock()
	defer o.obsMu.Unlock()
	o.observers = append(o.observers, obs)
}

// UseArchive sets the store read when a session is no longer in memory.
func (o *Orchestrator) UseArchive(a Archive) {
	o.archive = a
}

func (o *Orchestrator) eachObserver(fn func(Observer)) {
	o.obsMu.RLock()
	obs := o.observers
	o.obsMu.RUnlock()
	for _, ob := range obs {
		fn(ob)
	}
}

func validate(req Request) error {
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return &domain.ValidationError{Field: "query", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return &domain.ValidationError{Field: "query", Message: fmt.Sprintf("must be at most %d characters", MaxQueryLength)}
	}
	if req.Options.MaxIterations < 0 || req.Options.MaxIterations > MaxIterations {
		return &domain.ValidationError{Field: "max_iterations", Message: fmt.Sprintf("must be between 1 and %d", MaxIterations)}
	}
	if req.Mode == domain.ModePortfolio {
		if len(req.Options.Holdings) == 0 {
			return &domain.ValidationError{Field: "holdings", Message: "at least one holding is required"}
		}
		for i, h := range req.Options.Holdings {
			if strings.TrimSpace(h.Ticker) == "" || h.Quantity <= 0 {
				return &domain.ValidationError{Field: fmt.Sprintf("holdings[%d]", i), Message: "ticker and a positive quantity are required"}
			}
		}
	}
	return nil
}

func subject(req Request) string {
	q := strings.TrimSpace(req.Query)
	switch req.Mode {
	case domain.ModeResearch:
		return catalog.TickerFrom(q)
	case domain.ModePortfolio:
		if req.Options.PortfolioName != "" {
			return req.Options.PortfolioName
		}
	}
	return q
}

// Start validates req and launches a pipeline run in the background. Giving
// the id of a failed session re-runs it; a running session is busy and a
// completed one is final.
func (o *Orchestrator) Start(req Request) (domain.Snapshot, error) {
	if err := validate(req); err != nil {
		return domain.Snapshot{}, err
	}
	pb, err := step.ForMode(req.Mode)
	if err != nil {
		return domain.Snapshot{}, &domain.ValidationError{Field: "mode", Message: err.Error()}
	}

	sess, err := o.claim(req)
	if err != nil {
		return domain.Snapshot{}, err
	}

	ctx, cancel := context.WithCancel(o.baseCtx)
	if err := sess.Begin(cancel); err != nil {
		cancel()
		return domain.Snapshot{}, fmt.Errorf("session %s: %w", sess.ID, err)
	}
	o.events.Open(sess.ID)
	o.sessions.Touch(sess.ID)

	snap := sess.Snapshot()
	st := step.NewState(sess.ID, sess.Mode, sess.Query, sess.Subject, sess.Options, snap.Steps, snap.Citations)

	o.wg.Add(1)
	go o.run(ctx, sess, pb, st)

	o.logger.Info(module, "session started", map[string]interface{}{
		"session_id": sess.ID,
		"mode":       sess.Mode,
		"subject":    sess.Subject,
		"restart":    len(snap.Steps) > 0,
	})
	return snap, nil
}

func (o *Orchestrator) claim(req Request) (*session.Session, error) {
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		id = uuid.NewString()
	} else {
		if sess, err := o.sessions.Get(id); err == nil {
			if sess.Mode != req.Mode {
				return nil, modeMismatch(sess.Mode)
			}
			return sess, nil
		}
		archived, err := o.restore(id, req)
		if err != nil {
			return nil, err
		}
		if archived != nil {
			return archived, nil
		}
	}

	sess := session.New(id, req.Mode, strings.TrimSpace(req.Query), subject(req), req.Options)
	if err := o.sessions.Create(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func modeMismatch(mode domain.Mode) error {
	return &domain.ValidationError{Field: "session_id", Message: "belongs to a " + string(mode) + " session"}
}

// restore looks up an evicted session in the archive. Completed sessions stay
// final; a failed one can be re-run by its owner and comes back with its steps
// and citations. It returns nil, nil when the archive does not know id.
func (o *Orchestrator) restore(id string, req Request) (*session.Session, error) {
	if o.archive == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(o.baseCtx, archiveTimeout)
	defer cancel()

	snap, err := o.archive.Load(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}

	switch {
	case snap.Mode != req.Mode:
		return nil, modeMismatch(snap.Mode)
	case snap.UserID != req.Options.UserID:
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionBusy)
	case snap.Status != domain.StatusError:
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionFinalized)
	}

	sess := session.Restore(snap, req.Options)
	if err := o.sessions.Create(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (o *Orchestrator) run(ctx context.Context, sess *session.Session, pb step.Playbook, st *step.State) {
	defer o.wg.Done()
	defer sess.End()

	ctx, span := otel.Tracer("slingshot/pipeline").Start(ctx, "pipeline.run")
	span.SetAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("session.mode", string(sess.Mode)),
	)
	defer span.End()

	o.eachObserver(func(ob Observer) { ob.SessionStarted(sess.Snapshot()) })

	err := o.drive(ctx, sess, pb, st)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		reason := sess.StopReason()
		if reason == "" {
			reason = "server shutting down"
		}
		o.fail(sess, "cancelled: "+reason, true)
		span.SetStatus(codes.Error, "cancelled")
	default:
		o.fail(sess, err.Error(), false)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	snap := sess.Snapshot()
	o.eachObserver(func(ob Observer) { ob.SessionFinished(snap) })
}

// drive runs the state machine. A panic inside a step becomes a
// PipelineError so one session can never take the process down.
func (o *Orchestrator) drive(ctx context.Context, sess *session.Session, pb step.Playbook, st *step.State) (err error) {
	defer func() {
		if p := recover(); p != nil {
			o.logger.Error(module, "pipeline panic", map[string]interface{}{"session_id": sess.ID, "panic": fmt.Sprint(p)})
			err = &domain.PipelineError{Reason: fmt.Sprintf("internal error: %v", p)}
		}
	}()

	budget := o.cfg.RetryBudget
	if st.Options.MaxIterations > 0 {
		budget = st.Options.MaxIterations
	}

	if _, err := o.step(ctx, sess, pb, st, domain.StepPlanning); err != nil {
		return err
	}
	for {
		for _, t := range []domain.StepType{domain.StepResearching, domain.StepAnalyzing} {
			if _, err := o.step(ctx, sess, pb, st, t); err != nil {
				return err
			}
		}
		out, err := o.step(ctx, sess, pb, st, domain.StepReflecting)
		if err != nil {
			return err
		}
		if out.Verdict == nil || out.Verdict.Complete {
			break
		}
		if st.Pass > budget {
			return &domain.PipelineError{
				Step:   domain.StepReflecting,
				Reason: fmt.Sprintf("evidence incomplete after %d research passes", st.Pass),
			}
		}
		st.Gaps = out.Verdict.Missing
		st.Pass++
		if err := wait(ctx, o.cfg.RetryWait); err != nil {
			return err
		}
	}

	if _, err := o.step(ctx, sess, pb, st, domain.StepReporting); err != nil {
		return err
	}
	return o.complete(ctx, sess, st)
}

// step runs one step and emits it. Nothing is emitted once ctx is cancelled.
func (o *Orchestrator) step(ctx context.Context, sess *session.Session, pb step.Playbook, st *step.State, t domain.StepType) (step.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return step.Outcome{}, err
	}
	sess.SetStatus(t.Status())
	o.publish(broadcast.StatusEvent(sess.ID, t.Status()))

	started := time.Now()
	out, err := o.exec.Run(ctx, pb, t, st)
	if err != nil {
		return out, err
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	if t == domain.StepReporting {
		if err := verify(st); err != nil {
			return out, err
		}
	}

	st.Steps = append(st.Steps, out.Step)
	sess.AppendStep(out.Step, st.Citations.List())
	o.publish(broadcast.StepEvent(sess.ID, out.Step))

	elapsed := time.Since(started)
	o.eachObserver(func(ob Observer) { ob.StepEmitted(sess.ID, sess.Mode, out.Step, elapsed) })
	return out, nil
}

// verify enforces that every citation marker in the report and extensions
// resolves to a session citation.
func verify(st *step.State) error {
	if st.Report == nil {
		return &domain.PipelineError{Step: domain.StepReporting, Reason: "no report produced"}
	}
	texts := append([]string{st.Report.ExecutiveSummary, st.Report.FullReport}, report.ExtensionTexts(st.Extensions)...)
	if err := report.Verify(st.Citations.List(), texts...); err != nil {
		return &domain.PipelineError{Step: domain.StepReporting, Reason: "citation integrity violated", Err: err}
	}
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, sess *session.Session, st *step.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !sess.Complete(*st.Report, st.Extensions, st.Citations.List()) {
		return nil
	}
	o.publish(broadcast.StatusEvent(sess.ID, domain.StatusComplete))
	o.publish(broadcast.ReportEvent(sess.ID, *st.Report))
	o.logger.Info(module, "session complete", map[string]interface{}{
		"session_id": sess.ID,
		"steps":      len(st.Steps),
		"citations":  st.Citations.Len(),
		"passes":     st.Pass,
	})
	return nil
}

func (o *Orchestrator) fail(sess *session.Session, msg string, cancelled bool) {
	if !sess.Fail(msg) {
		return
	}
	o.publish(broadcast.StatusEvent(sess.ID, domain.StatusError))
	o.publish(broadcast.ErrorEvent(sess.ID, msg, cancelled))

	details := map[string]interface{}{"session_id": sess.ID, "message": msg}
	if cancelled {
		o.logger.Info(module, "session cancelled", details)
		return
	}
	o.logger.Warn(module, "session failed", details)
}

func (o *Orchestrator) publish(ev broadcast.Event) {
	if _, err := o.events.Publish(ev); err != nil {
		// The log is gone once the session is evicted.
		o.logger.Debug(module, "event not published", map[string]interface{}{
			"session_id": ev.SessionID,
			"event":      ev.Kind,
			"error":      err.Error(),
		})
		return
	}
	o.sessions.Touch(ev.SessionID)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Status returns the current snapshot of a session, falling back to the
// archive for sessions already evicted from memory.
func (o *Orchestrator) Status(ctx context.Context, id string) (domain.Snapshot, error) {
	sess, err := o.sessions.Get(id)
	if err == nil {
		return sess.Snapshot(), nil
	}
	if o.archive != nil {
		snap, aerr := o.archive.Load(ctx, id)
		if aerr == nil {
			return snap, nil
		}
		if !errors.Is(aerr, domain.ErrNotFound) {
			return domain.Snapshot{}, aerr
		}
	}
	return domain.Snapshot{}, err
}

// Report returns the finalized report of a session.
func (o *Orchestrator) Report(ctx context.Context, id string) (domain.Report, error) {
	snap, err := o.Status(ctx, id)
	if err != nil {
		return domain.Report{}, err
	}
	if snap.Report == nil {
		return domain.Report{}, fmt.Errorf("session %s: %w", id, domain.ErrReportNotReady)
	}
	return *snap.Report, nil
}

// Stop cancels the active run of a session and waits, bounded by ctx, for the
// run to record the cancellation. Stopping a session that is not running is a
// no-op.
func (o *Orchestrator) Stop(ctx context.Context, id, reason string) (domain.Snapshot, error) {
	sess, err := o.sessions.Get(id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if reason == "" {
		reason = "stopped by user"
	}
	if done, ok := sess.RequestStop(reason); ok {
		select {
		case <-done:
		case <-ctx.Done():
			return sess.Snapshot(), ctx.Err()
		}
	}
	return sess.Snapshot(), nil
}

// Subscribe attaches a subscriber to a session's event log, replaying every
// event after since.
func (o *Orchestrator) Subscribe(id string, since uint64) (*broadcast.Subscription, error) {
	if _, err := o.sessions.Get(id); err != nil {
		return nil, err
	}
	o.sessions.Touch(id)
	return o.events.Subscribe(id, since)
}

// Touch records subscriber activity on a session.
func (o *Orchestrator) Touch(id string) {
	o.sessions.Touch(id)
}

// Shutdown cancels every running session and waits for the runs to finish.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	for _, s := range o.sessions.Running() {
		s.RequestStop("server shutting down")
	}
	o.shutdown()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
