package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrReportNotReady   = errors.New("report not found")
	ErrSessionBusy      = errors.New("session already has an active pipeline")
	ErrSessionFinalized = errors.New("session report is already finalized")
	ErrCancelled        = errors.New("cancelled")
	ErrUnknownTool      = errors.New("unknown tool")
)

// ValidationError rejects a malformed request before it reaches the pipeline.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ToolFailure is one failed tool call. The step executor absorbs it unless
// every tool in the step fails.
type ToolFailure struct {
	Tool     string
	TimedOut bool
	Err      error
}

func (e *ToolFailure) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("tool %s timed out", e.Tool)
	}
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolFailure) Unwrap() error {
	return e.Err
}

// PipelineError is fatal to one session and moves it to StatusError.
type PipelineError struct {
	Step   StepType
	Reason string
	Err    error
}

func (e *PipelineError) Error() string {
	msg := e.Reason
	if e.Step != "" {
		msg = fmt.Sprintf("%s step: %s", e.Step, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
