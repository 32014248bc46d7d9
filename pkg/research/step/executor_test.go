package step

import (
	"context"
	"errors"
	"testing"
	"time"

	"slingshot-be/pkg/research/citation"
	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlaybook struct {
	calls []Call
	draft Draft
}

func (stubPlaybook) Mode() domain.Mode                      { return domain.ModeResearch }
func (p stubPlaybook) Calls(domain.StepType, *State) []Call { return p.calls }

func (p stubPlaybook) Compose(domain.StepType, *State, *Verdict) (Draft, error) {
	return p.draft, nil
}

func sourceTool(name, url string) tool.Func {
	return tool.Func{ToolName: name, Fn: func(ctx context.Context, _ tool.Params) (*tool.Result, error) {
		return &tool.Result{
			Data:    map[string]any{},
			Sources: []citation.Source{{Type: domain.SourceWeb, Name: name, URL: url}},
		}, nil
	}}
}

func failingTool(name string) tool.Func {
	return tool.Func{ToolName: name, Fn: func(context.Context, tool.Params) (*tool.Result, error) {
		return nil, errors.New("upstream unavailable")
	}}
}

func slowTool(name string) tool.Func {
	return tool.Func{ToolName: name, Fn: func(ctx context.Context, _ tool.Params) (*tool.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
}

func newState() *State {
	return NewState("s1", domain.ModeResearch, "Analyze TCS", "TCS", domain.Options{}, nil, nil)
}

func TestRunRecordsExecutionsAndCitations(t *testing.T) {
	reg := tool.NewRegistry(time.Second)
	reg.Register(sourceTool("a", "https://a.example"))
	reg.Register(sourceTool("b", "https://b.example"))

	st := newState()
	pb := stubPlaybook{calls: []Call{{Tool: "a"}, {Tool: "b"}}, draft: Draft{Title: "t", Confidence: 0.8}}

	out, err := NewExecutor(reg, Policy{}).Run(context.Background(), pb, domain.StepResearching, st)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Step.StepNumber)
	assert.Equal(t, domain.StepResearching, out.Step.StepType)
	assert.Equal(t, 0.8, out.Step.Confidence)
	require.Len(t, out.Step.ToolExecutions, 2)
	for _, e := range out.Step.ToolExecutions {
		assert.Equal(t, domain.ToolSucceeded, e.Status)
		require.NotNil(t, e.ExecutionTimeMs)
		assert.GreaterOrEqual(t, *e.ExecutionTimeMs, int64(0))
	}
	assert.Equal(t, 2, st.Citations.Len())
	assert.Equal(t, "[cite-1]", st.Cite("a"))
	assert.Equal(t, "[cite-2]", st.Cite("b"))
	assert.Nil(t, out.Verdict)
	assert.Empty(t, st.Steps, "executor must not append steps")
}

func TestRunDegradesOnPartialFailure(t *testing.T) {
	reg := tool.NewRegistry(30 * time.Millisecond)
	reg.Register(sourceTool("ok", "https://ok.example"))
	reg.Register(failingTool("broken"))
	reg.Register(slowTool("slow"))
	reg.Register(sourceTool("ok2", "https://ok2.example"))

	pb := stubPlaybook{
		calls: []Call{{Tool: "ok"}, {Tool: "broken"}, {Tool: "slow"}, {Tool: "ok2"}},
		draft: Draft{Confidence: 0.8},
	}
	out, err := NewExecutor(reg, Policy{}).Run(context.Background(), pb, domain.StepPlanning, newState())
	require.NoError(t, err)

	execs := out.Step.ToolExecutions
	require.Len(t, execs, 4)
	assert.Equal(t, domain.ToolFailed, execs[1].Status)
	assert.Nil(t, execs[1].ExecutionTimeMs)
	assert.Equal(t, domain.ToolTimedOut, execs[2].Status)
	assert.Nil(t, execs[2].ExecutionTimeMs)
	// Two of four failed: 0.8 * (1 - 0.5*0.5).
	assert.InDelta(t, 0.6, out.Step.Confidence, 0.001)
}

func TestRunFailsWhenAllToolsFail(t *testing.T) {
	reg := tool.NewRegistry(time.Second)
	reg.Register(failingTool("x"))
	reg.Register(failingTool("y"))

	pb := stubPlaybook{calls: []Call{{Tool: "x"}, {Tool: "y"}}, draft: Draft{Confidence: 0.9}}
	_, err := NewExecutor(reg, Policy{}).Run(context.Background(), pb, domain.StepResearching, newState())

	var pe *domain.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.StepResearching, pe.Step)
	var tf *domain.ToolFailure
	assert.True(t, errors.As(err, &tf))
}

func TestRunWithoutToolsSucceeds(t *testing.T) {
	pb := stubPlaybook{draft: Draft{Title: "plan", Confidence: 0.95}}
	out, err := NewExecutor(tool.NewRegistry(time.Second), Policy{}).Run(context.Background(), pb, domain.StepPlanning, newState())
	require.NoError(t, err)
	assert.Empty(t, out.Step.ToolExecutions)
	assert.Equal(t, 0.95, out.Step.Confidence)
}

func TestRunUnknownToolCountsAsFailure(t *testing.T) {
	reg := tool.NewRegistry(time.Second)
	reg.Register(sourceTool("a", "https://a.example"))
	pb := stubPlaybook{calls: []Call{{Tool: "a"}, {Tool: "missing"}}, draft: Draft{Confidence: 1}}

	out, err := NewExecutor(reg, Policy{}).Run(context.Background(), pb, domain.StepResearching, newState())
	require.NoError(t, err)
	assert.Equal(t, domain.ToolFailed, out.Step.ToolExecutions[1].Status)
	assert.Equal(t, 0.75, out.Step.Confidence)
}

func TestConfidenceClampedToUpstream(t *testing.T) {
	st := newState()
	st.Steps = []domain.ThoughtStep{
		{StepNumber: 1, StepType: domain.StepAnalyzing, Confidence: 0.9},
		{StepNumber: 2, StepType: domain.StepAnalyzing, Confidence: 0.55},
	}
	pb := stubPlaybook{draft: Draft{Confidence: 0.9}}

	out, err := NewExecutor(tool.NewRegistry(time.Second), Policy{}).Run(context.Background(), pb, domain.StepReflecting, st)
	require.NoError(t, err)
	assert.Equal(t, 0.55, out.Step.Confidence)
	assert.Equal(t, 3, out.Step.StepNumber)
	require.NotNil(t, out.Verdict)
}

func TestRunCancelled(t *testing.T) {
	reg := tool.NewRegistry(time.Second)
	reg.Register(slowTool("slow"))
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	pb := stubPlaybook{calls: []Call{{Tool: "slow"}}, draft: Draft{Confidence: 1}}
	_, err := NewExecutor(reg, Policy{}).Run(ctx, pb, domain.StepResearching, newState())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicyCheck(t *testing.T) {
	store := citation.NewStore()
	store.Add(citation.Source{Type: domain.SourceScreener, Name: "s", URL: "https://s"})
	store.Add(citation.Source{Type: domain.SourcePDF, Name: "p", URL: "https://p"})

	tests := []struct {
		name     string
		policy   Policy
		complete bool
		missing  []string
	}{
		{"satisfied", Policy{MinCitations: 2, RequiredSourceTypes: []string{"screener", "pdf"}}, true, nil},
		{"too few", Policy{MinCitations: 3}, false, nil},
		{"missing type", Policy{MinCitations: 1, RequiredSourceTypes: []string{"pdf", "web"}}, false, []string{"web"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.policy.Check(store)
			assert.Equal(t, tt.complete, v.Complete)
			assert.Equal(t, tt.missing, v.Missing)
			assert.Equal(t, 2, v.Citations)
		})
	}
}

func TestPenalise(t *testing.T) {
	assert.Equal(t, 0.8, penalise(0.8, 0, 0))
	assert.Equal(t, 0.4, penalise(0.8, 2, 2))
	assert.Equal(t, 1.0, penalise(1.3, 1, 0))
}
