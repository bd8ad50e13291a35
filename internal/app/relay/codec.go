package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"npcgateway/internal/app/decide"
	"npcgateway/internal/app/ports"
)

const (
	TypeDecision = "ai_decision"
	TypeError    = "error"

	errMalformed = "malformed-request"
)

var (
	ErrMalformed       = errors.New("malformed producer message")
	ErrMissingIdentity = errors.New("missing requester identity")
)

// producerMessage accepts two layouts: an explicit envelope
// {requesterId, requesterName, worldState, sampling} and the game client's native
// snapshot where identity sits under player_status and the whole document is the
// world state.
type producerMessage struct {
	RequesterID   string          `json:"requesterId"`
	RequesterName string          `json:"requesterName"`
	Persona       string          `json:"persona"`
	WorldState    json.RawMessage `json:"worldState"`
	Sampling      *ports.Sampling `json:"sampling"`
	PlayerStatus  *struct {
		PlayerID    string `json:"player_id"`
		PlayerName  string `json:"player_name"`
		Personality string `json:"personality"`
	} `json:"player_status"`
}

func DecodeRequest(data []byte) (decide.Request, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return decide.Request{}, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}
	var msg producerMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return decide.Request{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	req := decide.Request{}
	if msg.Sampling != nil {
		req.Sampling = *msg.Sampling
	}
	switch {
	case strings.TrimSpace(msg.RequesterID) != "":
		req.RequesterID = msg.RequesterID
		req.RequesterName = msg.RequesterName
		req.Persona = msg.Persona
		req.WorldState = msg.WorldState
		if req.Persona == "" && msg.PlayerStatus != nil {
			req.Persona = msg.PlayerStatus.Personality
		}
	case msg.PlayerStatus != nil && strings.TrimSpace(msg.PlayerStatus.PlayerID) != "":
		req.RequesterID = msg.PlayerStatus.PlayerID
		req.RequesterName = msg.PlayerStatus.PlayerName
		req.Persona = msg.PlayerStatus.Personality
		req.WorldState = json.RawMessage(trimmed)
	default:
		return decide.Request{}, ErrMissingIdentity
	}
	if req.RequesterName == "" {
		req.RequesterName = req.RequesterID
	}
	return req, nil
}

// Message is the outbound decision sent to the producer and copied to observers.
type Message struct {
	Type        string          `json:"type"`
	NPCID       string          `json:"npcId"`
	NPCName     string          `json:"npcName"`
	Content     json.RawMessage `json:"content"`
	Timestamp   string          `json:"timestamp"`
	SceneReport string          `json:"sceneReport"`
	Reasoning   string          `json:"reasoning,omitempty"`
}

func NewMessage(req decide.Request, resp decide.Response) Message {
	return Message{
		Type:        TypeDecision,
		NPCID:       req.RequesterID,
		NPCName:     req.RequesterName,
		Content:     resp.Outcome.Content(),
		Timestamp:   resp.DecidedAt.UTC().Format(time.RFC3339Nano),
		SceneReport: resp.SceneReport,
		Reasoning:   resp.Outcome.Reasoning,
	}
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func encodeError(err error) []byte {
	b, _ := json.Marshal(ErrorMessage{Type: TypeError, Error: errMalformed, Message: err.Error()})
	return b
}
