package tool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"slingshot-be/pkg/research/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okTool(name string) Func {
	return Func{ToolName: name, Desc: name + " tool", Fn: func(ctx context.Context, p Params) (*Result, error) {
		return &Result{Data: map[string]any{"ticker": p.String("ticker")}}, nil
	}}
}

func TestInvokeSuccess(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register(okTool("financial_ratios"))

	res, elapsed, err := r.Invoke(context.Background(), "financial_ratios", Params{"ticker": "TCS"})
	require.NoError(t, err)
	assert.Equal(t, "TCS", res.Data["ticker"])
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
}

func TestInvokeUnknownTool(t *testing.T) {
	r := NewRegistry(time.Second)
	_, _, err := r.Invoke(context.Background(), "nope", nil)
	assert.True(t, errors.Is(err, domain.ErrUnknownTool))
}

func TestInvokeTimeout(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	r.Register(Func{ToolName: "slow", Fn: func(ctx context.Context, _ Params) (*Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})

	_, _, err := r.Invoke(context.Background(), "slow", nil)
	var tf *domain.ToolFailure
	require.True(t, errors.As(err, &tf))
	assert.True(t, tf.TimedOut)
	assert.Equal(t, "slow", tf.Tool)
}

func TestInvokeAbandonsToolIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	r := NewRegistry(20 * time.Millisecond)
	r.Register(Func{ToolName: "stuck", Fn: func(ctx context.Context, _ Params) (*Result, error) {
		<-release
		return &Result{}, nil
	}})

	start := time.Now()
	_, _, err := r.Invoke(context.Background(), "stuck", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestInvokeFailureAndPanic(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register(Func{ToolName: "broken", Fn: func(context.Context, Params) (*Result, error) {
		return nil, errors.New("upstream 503")
	}})
	r.Register(Func{ToolName: "panicky", Fn: func(context.Context, Params) (*Result, error) {
		panic("boom")
	}})

	for _, name := range []string{"broken", "panicky"} {
		_, _, err := r.Invoke(context.Background(), name, nil)
		var tf *domain.ToolFailure
		require.True(t, errors.As(err, &tf), name)
		assert.False(t, tf.TimedOut, name)
	}
}

func TestInvokeCallerCancellation(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register(Func{ToolName: "slow", Fn: func(ctx context.Context, _ Params) (*Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := r.Invoke(ctx, "slow", nil)
	assert.True(t, errors.Is(err, context.Canceled))
	var tf *domain.ToolFailure
	assert.False(t, errors.As(err, &tf), "caller cancellation is not a tool failure")
}

func TestListAndObserve(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register(okTool("news_aggregator"))
	r.Register(okTool("filing_parser"))

	var mu sync.Mutex
	seen := map[string]bool{}
	r.Observe(func(name string, _ time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		seen[name] = err == nil
	})

	_, _, err := r.Invoke(context.Background(), "filing_parser", nil)
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "filing_parser", list[0].Name)
	assert.Equal(t, "news_aggregator", list[1].Name)
	assert.True(t, seen["filing_parser"])
	assert.True(t, r.Has("news_aggregator"))
}
