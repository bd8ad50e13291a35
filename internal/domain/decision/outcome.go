package decision

import "encoding/json"

type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

type Reason string

const (
	ReasonNone        Reason = ""
	ReasonBackend     Reason = "backend-error"
	ReasonUnparseable Reason = "unparseable-output"
)

// Outcome is the pipeline's answer for one request: a Decision or a Failure reason.
type Outcome struct {
	Decision  *Decision
	Reason    Reason
	Detail    string
	Raw       string
	Reasoning string
}

func Succeeded(d Decision, reasoning string) Outcome {
	return Outcome{Decision: &d, Reasoning: reasoning}
}

func Failed(reason Reason, detail, raw string) Outcome {
	return Outcome{Reason: reason, Detail: detail, Raw: raw}
}

func (o Outcome) Status() Status {
	switch {
	case o.Decision != nil:
		return StatusOK
	case o.Reason == ReasonUnparseable:
		return StatusWarning
	default:
		return StatusError
	}
}

type failureContent struct {
	Error  Reason `json:"error"`
	Level  Status `json:"level"`
	Detail string `json:"detail,omitempty"`
	Raw    string `json:"raw,omitempty"`
}

// Content is the "content" payload sent to clients and stored with the record:
// the Decision itself on success, otherwise an error object.
func (o Outcome) Content() json.RawMessage {
	var v any
	if o.Decision != nil {
		v = o.Decision
	} else {
		v = failureContent{Error: o.Reason, Level: o.Status(), Detail: o.Detail, Raw: o.Raw}
	}
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(failureContent{Error: ReasonUnparseable, Level: StatusWarning, Detail: err.Error(), Raw: o.Raw})
	}
	return b
}
