// Package step runs single pipeline steps: it fans out the step's tool calls,
// files their sources in the citation store and writes the ThoughtStep.
package step

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/tool"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// Call is one planned tool invocation.
type Call struct {
	Tool   string
	Params tool.Params
}

// Draft is what a playbook writes for a step before confidence adjustment.
type Draft struct {
	Title      string
	Content    string
	Confidence float64
}

// Playbook decides which tools a step calls and how its findings read for one
// analysis mode.
type Playbook interface {
	Mode() domain.Mode
	Calls(t domain.StepType, st *State) []Call
	// Compose writes the step text. For the reporting step it also sets
	// st.Report and st.Extensions.
	Compose(t domain.StepType, st *State, v *Verdict) (Draft, error)
}

// Outcome is the result of one executed step. Verdict is set for reflecting
// steps only.
type Outcome struct {
	Step    domain.ThoughtStep
	Verdict *Verdict
}

type Executor struct {
	tools       *tool.Registry
	policy      Policy
	concurrency int
}

func NewExecutor(tools *tool.Registry, policy Policy) *Executor {
	return &Executor{tools: tools, policy: policy, concurrency: 4}
}

// SetConcurrency bounds how many tools of one step run at once.
func (e *Executor) SetConcurrency(n int) {
	if n > 0 {
		e.concurrency = n
	}
}

// Policy returns the completeness policy reflecting steps apply.
func (e *Executor) Policy() Policy {
	return e.policy
}

type callOutcome struct {
	res     *tool.Result
	elapsed time.Duration
	err     error
}

// Run executes step t. The returned step carries the next sequence number of
// st but is not appended to it; that is the orchestrator's job once the step is
// emitted. A step whose tools all fail returns a *domain.PipelineError.
func (e *Executor) Run(ctx context.Context, pb Playbook, t domain.StepType, st *State) (Outcome, error) {
	ctx, span := otel.Tracer("slingshot/step").Start(ctx, "step."+string(t))
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", st.SessionID),
		attribute.String("session.mode", string(st.Mode)),
		attribute.Int("research.pass", st.Pass),
	)

	calls := pb.Calls(t, st)
	outcomes := make([]callOutcome, len(calls))

	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for i, c := range calls {
		i, c := i, c
		g.Go(func() error {
			res, elapsed, err := e.tools.Invoke(ctx, c.Tool, c.Params)
			outcomes[i] = callOutcome{res: res, elapsed: elapsed, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return Outcome{}, err
	}

	execs := make([]domain.ToolExecution, 0, len(calls))
	var failures []error
	for i, c := range calls {
		o := outcomes[i]
		if o.err != nil {
			failures = append(failures, o.err)
			execs = append(execs, domain.ToolExecution{ToolName: c.Tool, Status: failedStatus(o.err)})
			continue
		}
		keys := make([]string, 0, len(o.res.Sources))
		for _, src := range o.res.Sources {
			keys = append(keys, st.Citations.Add(src).Key)
		}
		st.Findings[c.Tool] = Finding{Result: o.res, Keys: keys}
		ms := o.elapsed.Milliseconds()
		execs = append(execs, domain.ToolExecution{ToolName: c.Tool, ExecutionTimeMs: &ms, Status: domain.ToolSucceeded})
	}
	span.SetAttributes(attribute.Int("tools.attempted", len(calls)), attribute.Int("tools.failed", len(failures)))

	if len(calls) > 0 && len(failures) == len(calls) {
		err := &domain.PipelineError{Step: t, Reason: "all tools failed", Err: errors.Join(failures...)}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Reason)
		return Outcome{}, err
	}

	var verdict *Verdict
	if t == domain.StepReflecting {
		v := e.policy.Check(st.Citations)
		verdict = &v
	}

	draft, err := pb.Compose(t, st, verdict)
	if err != nil {
		return Outcome{}, &domain.PipelineError{Step: t, Reason: "compose failed", Err: err}
	}

	conf := penalise(draft.Confidence, len(calls), len(failures))
	conf = clampUpstream(conf, t, st)

	return Outcome{
		Step: domain.ThoughtStep{
			StepNumber:     st.NextNumber(),
			StepType:       t,
			Title:          draft.Title,
			Content:        draft.Content,
			Confidence:     conf,
			ToolExecutions: execs,
		},
		Verdict: verdict,
	}, nil
}

func failedStatus(err error) string {
	var tf *domain.ToolFailure
	if errors.As(err, &tf) && tf.TimedOut {
		return domain.ToolTimedOut
	}
	return domain.ToolFailed
}

// penalise lowers confidence in proportion to the share of failed tools; a
// step with every tool failing would lose half its confidence.
func penalise(conf float64, attempted, failed int) float64 {
	if attempted > 0 && failed > 0 {
		conf *= 1 - 0.5*float64(failed)/float64(attempted)
	}
	return round2(math.Max(0, math.Min(1, conf)))
}

// clampUpstream keeps a step from claiming more confidence than the latest
// step it reviews.
func clampUpstream(conf float64, t domain.StepType, st *State) float64 {
	up, ok := t.Upstream()
	if !ok {
		return conf
	}
	if prev, ok := st.Latest(up); ok && prev.Confidence < conf {
		return prev.Confidence
	}
	return conf
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ForMode returns the playbook for mode.
func ForMode(mode domain.Mode) (Playbook, error) {
	switch mode {
	case domain.ModeResearch:
		return Equity{}, nil
	case domain.ModeMacro:
		return Macro{}, nil
	case domain.ModePortfolio:
		return Portfolio{}, nil
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}
