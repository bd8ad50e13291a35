package history

import (
	"bytes"
	"encoding/json"
	"time"
)

type Request struct {
	Limit int
}

// Entry is one record as served to web clients. Field names follow the
// document layout the game dashboard already reads.
type Entry struct {
	ID          string          `json:"_id"`
	NPCID       string          `json:"npc_id"`
	NPCName     string          `json:"npc_name,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	SceneReport string          `json:"scene_report"`
	Status      string          `json:"status"`
	Content     json.RawMessage `json:"ai_content"`
}

// Response marshals as one JSON object keyed by requester id, with the
// requester of the newest record first.
type Response struct {
	// Groups maps requester id to its records, newest first.
	Groups map[string][]Entry
	// Order lists requester ids by their most recent record.
	Order []string
}

func (r Response) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.Order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.Groups[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
