package ports

import "encoding/json"

type Summarizer interface {
	Summarize(worldState json.RawMessage) (string, error)
}
