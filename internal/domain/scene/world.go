package scene

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMissingField = errors.New("world state missing required field")

// WorldState is the snapshot a game server sends for one NPC. Only the fields the
// report needs are modelled; everything else stays in the raw document.
type WorldState struct {
	PlayerStatus PlayerStatus  `json:"player_status"`
	MapMetadata  MapMetadata   `json:"map_metadata"`
	OtherPlayers []OtherPlayer `json:"orther_players_status"`
	OthersAlt    []OtherPlayer `json:"other_players_status"`
	Entities     []Entity      `json:"entities"`
}

type PlayerStatus struct {
	PlayerID    string          `json:"player_id"`
	PlayerName  string          `json:"player_name"`
	Personality string          `json:"personality"`
	CurrentPos  []float64       `json:"current_pos"`
	IsSleep     bool            `json:"is_sleep"`
	HP          float64         `json:"hp"`
	Satiety     float64         `json:"satiety"`
	Hydration   float64         `json:"hydration"`
	Sanity      float64         `json:"sanity"`
	AttackPower float64         `json:"attack_power"`
	Defense     float64         `json:"defense"`
	ChatHistory json.RawMessage `json:"chat_history"`
	Experiences json.RawMessage `json:"experiences"`
	Inventory   []*Item         `json:"inventory"`
}

type Item struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Describe string  `json:"describe"`
}

type MapMetadata struct {
	NavPolygons [][][]float64 `json:"nav_polygons"`
}

type OtherPlayer struct {
	NPCName  string          `json:"npc_name"`
	Position json.RawMessage `json:"position"`
}

type Entity struct {
	Name            string    `json:"name"`
	Center          []float64 `json:"center"`
	Describe        string    `json:"describe"`
	IsCrop          bool      `json:"is_crop"`
	StageName       string    `json:"stage_name"`
	TimeLeftSec     float64   `json:"time_left_sec"`
	CanWater        bool      `json:"can_water"`
	CanHarvest      bool      `json:"can_harvest"`
	HP              *float64  `json:"hp"`
	CanAttack       bool      `json:"can_attack"`
	CanInteract     bool      `json:"can_interact"`
	Rect            []float64 `json:"rect"`
	HasPhysicsLayer bool      `json:"has_physics_layer"`
}

func ParseWorldState(raw json.RawMessage) (WorldState, error) {
	var ws WorldState
	if len(raw) == 0 {
		return ws, fmt.Errorf("%w: empty document", ErrMissingField)
	}
	if err := json.Unmarshal(raw, &ws); err != nil {
		return ws, fmt.Errorf("decode world state: %w", err)
	}
	if len(ws.OtherPlayers) == 0 {
		ws.OtherPlayers = ws.OthersAlt
	}
	for i, e := range ws.Entities {
		if e.Name == "" {
			return ws, fmt.Errorf("%w: entities[%d].name", ErrMissingField, i)
		}
		if len(e.Center) != 2 {
			return ws, fmt.Errorf("%w: entities[%d].center", ErrMissingField, i)
		}
	}
	return ws, nil
}

func (p PlayerStatus) Position() [2]float64 {
	if len(p.CurrentPos) < 2 {
		return [2]float64{}
	}
	return [2]float64{p.CurrentPos[0], p.CurrentPos[1]}
}
