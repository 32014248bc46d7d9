package broadcast

import (
	"encoding/json"

	"slingshot-be/pkg/research/domain"
)

type Kind string

const (
	KindThoughtStep  Kind = "thought_step"
	KindStatusChange Kind = "status_change"
	KindReportReady  Kind = "report_ready"
	KindError        Kind = "error"
)

// Event is one entry of a session's event log. Seq is assigned on publish,
// starting at 1.
type Event struct {
	Seq       uint64
	Kind      Kind
	SessionID string
	Step      *domain.ThoughtStep
	Status    domain.Status
	Report    *domain.Report
	Message   string
	// Cancelled marks the error event of a user stop.
	Cancelled bool
}

// Terminal reports whether the event ends the current run.
func (e Event) Terminal() bool {
	return e.Kind == KindReportReady || e.Kind == KindError
}

func StepEvent(sessionID string, step domain.ThoughtStep) Event {
	return Event{Kind: KindThoughtStep, SessionID: sessionID, Step: &step}
}

func StatusEvent(sessionID string, status domain.Status) Event {
	return Event{Kind: KindStatusChange, SessionID: sessionID, Status: status}
}

func ReportEvent(sessionID string, r domain.Report) Event {
	return Event{Kind: KindReportReady, SessionID: sessionID, Report: &r}
}

func ErrorEvent(sessionID, message string, cancelled bool) Event {
	return Event{Kind: KindError, SessionID: sessionID, Message: message, Cancelled: cancelled}
}

type thoughtStepWire struct {
	Event     Kind               `json:"event"`
	SessionID string             `json:"session_id"`
	Data      domain.ThoughtStep `json:"data"`
}

type statusWire struct {
	Event     Kind          `json:"event"`
	SessionID string        `json:"session_id"`
	Status    domain.Status `json:"status"`
}

type reportWire struct {
	Event            Kind   `json:"event"`
	SessionID        string `json:"session_id"`
	ExecutiveSummary string `json:"executive_summary"`
	FullReport       string `json:"full_report"`
}

type errorWire struct {
	Event     Kind   `json:"event"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// MarshalJSON renders the client wire shape of each event kind.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindThoughtStep:
		var step domain.ThoughtStep
		if e.Step != nil {
			step = *e.Step
		}
		if step.ToolExecutions == nil {
			step.ToolExecutions = []domain.ToolExecution{}
		}
		return json.Marshal(thoughtStepWire{Event: e.Kind, SessionID: e.SessionID, Data: step})
	case KindStatusChange:
		return json.Marshal(statusWire{Event: e.Kind, SessionID: e.SessionID, Status: e.Status})
	case KindReportReady:
		var r domain.Report
		if e.Report != nil {
			r = *e.Report
		}
		return json.Marshal(reportWire{Event: e.Kind, SessionID: e.SessionID, ExecutiveSummary: r.ExecutiveSummary, FullReport: r.FullReport})
	default:
		return json.Marshal(errorWire{Event: KindError, SessionID: e.SessionID, Message: e.Message})
	}
}
