package tool

import "context"

// Func adapts a plain function to the Tool interface.
type Func struct {
	ToolName string
	Desc     string
	Fn       func(ctx context.Context, params Params) (*Result, error)
}

func (f Func) Name() string        { return f.ToolName }
func (f Func) Description() string { return f.Desc }

func (f Func) Execute(ctx context.Context, params Params) (*Result, error) {
	return f.Fn(ctx, params)
}
