package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type ActionType string

const (
	ActionMove     ActionType = "move"
	ActionUse      ActionType = "use"
	ActionAttack   ActionType = "attack"
	ActionInteract ActionType = "interact"
)

var (
	ErrNoActions         = errors.New("decision has no actions")
	ErrUnknownActionType = errors.New("unknown action type")
	ErrInvalidAction     = errors.New("invalid action params")
)

// Decision is the validated action plan an NPC should carry out next.
type Decision struct {
	Thought    string   `json:"thought"`
	Text       string   `json:"text"`
	Experience string   `json:"experience,omitempty"`
	Actions    []Action `json:"actions"`
}

// Action is one step of a Decision. The concrete types are Move, Use, Attack and Interact.
type Action interface {
	Type() ActionType
}

type Position [2]float64

type Move struct {
	Pos Position
}

type Use struct {
	ItemName string
}

type Attack struct {
	Count int
}

type Interact struct{}

func (Move) Type() ActionType     { return ActionMove }
func (Use) Type() ActionType      { return ActionUse }
func (Attack) Type() ActionType   { return ActionAttack }
func (Interact) Type() ActionType { return ActionInteract }

func (a Move) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type ActionType `json:"type"`
		Pos  Position   `json:"pos"`
	}{a.Type(), a.Pos})
}

func (a Use) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     ActionType `json:"type"`
		ItemName string     `json:"item_name"`
	}{a.Type(), a.ItemName})
}

func (a Attack) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  ActionType `json:"type"`
		Count int        `json:"sum"`
	}{a.Type(), a.Count})
}

func (a Interact) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type ActionType `json:"type"`
	}{a.Type()})
}

type wireDecision struct {
	Thought    *string           `json:"thought"`
	Text       *string           `json:"text"`
	Experience *string           `json:"experience"`
	Actions    []json.RawMessage `json:"actions"`
}

// wireAction accepts the keys the prompt schema asks for plus the aliases models commonly drift to.
type wireAction struct {
	Type        string          `json:"type"`
	Pos         json.RawMessage `json:"pos"`
	ItemName    *string         `json:"item_name"`
	ItemNameAlt *string         `json:"itemName"`
	Sum         *json.Number    `json:"sum"`
	Count       *json.Number    `json:"count"`
}

func (d *Decision) UnmarshalJSON(b []byte) error {
	var w wireDecision
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := Decision{}
	if w.Thought != nil {
		out.Thought = *w.Thought
	}
	if w.Text != nil {
		out.Text = *w.Text
	}
	if w.Experience != nil {
		out.Experience = *w.Experience
	}
	out.Actions = make([]Action, 0, len(w.Actions))
	for i, raw := range w.Actions {
		a, err := decodeAction(raw)
		if err != nil {
			return fmt.Errorf("actions[%d]: %w", i, err)
		}
		out.Actions = append(out.Actions, a)
	}
	*d = out
	return nil
}

// Validate enforces the decision contract: at least one action, each of a known type.
func (d Decision) Validate() error {
	if len(d.Actions) == 0 {
		return ErrNoActions
	}
	for i, a := range d.Actions {
		if a == nil {
			return fmt.Errorf("actions[%d]: %w", i, ErrInvalidAction)
		}
		switch a.Type() {
		case ActionMove, ActionUse, ActionAttack, ActionInteract:
		default:
			return fmt.Errorf("actions[%d]: %w: %q", i, ErrUnknownActionType, a.Type())
		}
	}
	return nil
}

func decodeAction(raw json.RawMessage) (Action, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var w wireAction
	if err := dec.Decode(&w); err != nil {
		return nil, err
	}
	switch ActionType(strings.TrimSpace(w.Type)) {
	case ActionMove:
		pos, err := decodePosition(w.Pos)
		if err != nil {
			return nil, err
		}
		return Move{Pos: pos}, nil
	case ActionUse:
		name := w.ItemName
		if name == nil {
			name = w.ItemNameAlt
		}
		if name == nil || strings.TrimSpace(*name) == "" {
			return nil, fmt.Errorf("%w: use requires item_name", ErrInvalidAction)
		}
		return Use{ItemName: *name}, nil
	case ActionAttack:
		n := w.Sum
		if n == nil {
			n = w.Count
		}
		if n == nil {
			return nil, fmt.Errorf("%w: attack requires sum", ErrInvalidAction)
		}
		count, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: attack sum must be an integer", ErrInvalidAction)
		}
		return Attack{Count: int(count)}, nil
	case ActionInteract:
		return Interact{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionType, w.Type)
	}
}

func decodePosition(raw json.RawMessage) (Position, error) {
	if len(raw) == 0 {
		return Position{}, fmt.Errorf("%w: move requires pos", ErrInvalidAction)
	}
	var arr []float64
	if err := json.Unmarshal(raw, &arr); err == nil {
		if len(arr) != 2 {
			return Position{}, fmt.Errorf("%w: pos must have 2 coordinates", ErrInvalidAction)
		}
		return Position{arr[0], arr[1]}, nil
	}
	var obj struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.X == nil || obj.Y == nil {
		return Position{}, fmt.Errorf("%w: pos must be [x, y]", ErrInvalidAction)
	}
	return Position{*obj.X, *obj.Y}, nil
}
