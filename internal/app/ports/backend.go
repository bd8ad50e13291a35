package ports

import "context"

// Sampling carries generation parameters through to the backend. Nil or zero
// fields mean "backend default".
type Sampling struct {
	Temperature       *float64 `json:"temperature,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	MaxTokens         int      `json:"max_tokens,omitempty"`
	Stop              []string `json:"stop,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`
}

// Merge returns s with every field set in override replacing its counterpart.
func (s Sampling) Merge(override Sampling) Sampling {
	out := s
	if override.Temperature != nil {
		out.Temperature = override.Temperature
	}
	if override.TopP != nil {
		out.TopP = override.TopP
	}
	if override.MaxTokens > 0 {
		out.MaxTokens = override.MaxTokens
	}
	if len(override.Stop) > 0 {
		out.Stop = override.Stop
	}
	if override.RepetitionPenalty != nil {
		out.RepetitionPenalty = override.RepetitionPenalty
	}
	return out
}

// BackendRequest offers the prompt in every shape a backend may want: the system
// part, the bare scene report, the user part (report plus task cue) and the full text.
type BackendRequest struct {
	SystemPrompt string
	SceneReport  string
	UserPrompt   string
	Prompt       string
	Sampling     Sampling
}

type BackendReply struct {
	Text string
}

type InferenceBackend interface {
	Generate(ctx context.Context, req BackendRequest) (BackendReply, error)
}
