package decide

import (
	"encoding/json"
	"time"

	"npcgateway/internal/app/ports"
	"npcgateway/internal/domain/decision"
)

type Request struct {
	RequesterID   string
	RequesterName string
	Persona       string
	WorldState    json.RawMessage
	Sampling      ports.Sampling
}

type Response struct {
	Outcome     decision.Outcome
	SceneReport string
	DecidedAt   time.Time
}
