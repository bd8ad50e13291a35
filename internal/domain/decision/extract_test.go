package decision

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_ObjectAmidNoiseAndReasoning(t *testing.T) {
	raw := "<think>I am hungry, the berry bush is close.</think>\nSure! Here is my plan:\n" +
		`{"thought":"eat first","text":"Be right back","actions":[{"type":"move","pos":[12,7]}]}` +
		"\nHope that helps."

	res := Extract(raw)
	require.True(t, res.OK(), "failure: %v", res.Failure)
	assert.Equal(t, "I am hungry, the berry bush is close.", res.Reasoning)
	assert.Equal(t, "eat first", res.Decision.Thought)
	assert.Equal(t, "Be right back", res.Decision.Text)
	require.Len(t, res.Decision.Actions, 1)
	assert.Equal(t, Move{Pos: Position{12, 7}}, res.Decision.Actions[0])
	assert.False(t, res.Repaired)
}

func TestExtract_ReasoningWithBracesIsNotParsed(t *testing.T) {
	raw := `<think>maybe {"thought":"wrong"} is the answer</think>{"thought":"right","text":"","actions":[{"type":"interact"}]}`

	res := Extract(raw)
	require.True(t, res.OK(), "failure: %v", res.Failure)
	assert.Equal(t, "right", res.Decision.Thought)
	assert.Contains(t, res.Reasoning, `{"thought":"wrong"}`)
}

func TestExtract_ClosingMarkerOnly(t *testing.T) {
	raw := "Okay, let me look at the map first.\n</think>\n" +
		`{"thought":"t","text":"x","actions":[{"type":"interact"}]}`

	res := Extract(raw)
	require.True(t, res.OK(), "failure: %v", res.Failure)
	assert.Equal(t, "Okay, let me look at the map first.", res.Reasoning)
}

func TestExtract_NestedActionsAreNotTruncated(t *testing.T) {
	raw := `{"thought":"clear the field","text":"Watch out","actions":[` +
		`{"type":"move","pos":[1.5,2]},` +
		`{"type":"use","item_name":"wheat seed"},` +
		`{"type":"attack","sum":3},` +
		`{"type":"interact"}]}`

	res := Extract(raw)
	require.True(t, res.OK(), "failure: %v", res.Failure)
	assert.Equal(t, []Action{
		Move{Pos: Position{1.5, 2}},
		Use{ItemName: "wheat seed"},
		Attack{Count: 3},
		Interact{},
	}, res.Decision.Actions)
}

func TestExtract_TrailingCommaRepaired(t *testing.T) {
	raw := "```json\n" + `{"thought":"t","text":"hi","actions":[{"type":"interact"},],}` + "\n```"

	res := Extract(raw)
	require.True(t, res.OK(), "failure: %v", res.Failure)
	assert.True(t, res.Repaired)
	assert.Equal(t, []Action{Interact{}}, res.Decision.Actions)
}

func TestExtract_FenceInsideStringKeptVerbatim(t *testing.T) {
	raw := "```json\n" + `{"thought":"t","text":"run ` + "```sh ls```" + `","actions":[{"type":"interact"}]}` + "\n```"

	res := Extract(raw)
	require.True(t, res.OK(), "failure: %v", res.Failure)
	assert.False(t, res.Repaired)
	if got, want := res.Decision.Text, "run ```sh ls```"; got != want {
		t.Fatalf("text mismatch: got=%q want=%q", got, want)
	}
}

func TestExtract_RepairLeavesStringLiteralsAlone(t *testing.T) {
	raw := `{"thought":"lists look like [a,] or {b,}","text":"say \"x,]\"","actions":[{"type":"interact"},]}`

	res := Extract(raw)
	require.True(t, res.OK(), "failure: %v", res.Failure)
	assert.True(t, res.Repaired)
	assert.Equal(t, "lists look like [a,] or {b,}", res.Decision.Thought)
	assert.Equal(t, `say "x,]"`, res.Decision.Text)
}

func TestRepair(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing comma in array", `{"a":[1,2, ]}`, `{"a":[1,2 ]}`},
		{"trailing comma in object", "{\"a\":1,\n}", "{\"a\":1\n}"},
		{"stray fence outside strings", "{```json\n\"a\":1}", "{\n\"a\":1}"},
		{"comma inside string", `{"a":"x,}"}`, `{"a":"x,}"}`},
		{"escaped quote inside string", `{"a":"q\",]","b":2,}`, `{"a":"q\",]","b":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := repair(tt.in); got != tt.want {
				t.Fatalf("repair mismatch: got=%q want=%q", got, tt.want)
			}
		})
	}
}

func TestExtract_NoBraceIsFailure(t *testing.T) {
	raw := "I think I should rest."

	var res Result
	require.NotPanics(t, func() { res = Extract(raw) })
	require.False(t, res.OK())
	assert.Equal(t, raw, res.Failure.Raw)
	assert.True(t, errors.Is(res.Failure, ErrNoCandidate))
}

func TestExtract_EmptyInput(t *testing.T) {
	res := Extract("")
	require.False(t, res.OK())
	assert.Equal(t, "", res.Failure.Raw)
}

func TestExtract_UnrepairableSyntaxKeepsRaw(t *testing.T) {
	raw := `{"thought": "t", "text": "unterminated, "actions": [}`

	res := Extract(raw)
	require.False(t, res.OK())
	assert.Equal(t, raw, res.Failure.Raw)
	assert.False(t, res.Repaired)
}

func TestExtract_UnknownActionTypeRejected(t *testing.T) {
	raw := `{"thought":"t","text":"x","actions":[{"type":"interact"},{"type":"dance"}]}`

	res := Extract(raw)
	require.False(t, res.OK())
	assert.True(t, errors.Is(res.Failure, ErrUnknownActionType))
}

func TestExtract_EmptyActionsRejected(t *testing.T) {
	res := Extract(`{"thought":"t","text":"x","actions":[]}`)
	require.False(t, res.OK())
	assert.True(t, errors.Is(res.Failure, ErrNoActions))
}

func TestExtract_InvalidActionParams(t *testing.T) {
	cases := map[string]string{
		"move without pos":    `{"actions":[{"type":"move"}]}`,
		"move with one coord": `{"actions":[{"type":"move","pos":[1]}]}`,
		"use without item":    `{"actions":[{"type":"use"}]}`,
		"attack fractional":   `{"actions":[{"type":"attack","sum":1.5}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			res := Extract(raw)
			require.False(t, res.OK())
			assert.True(t, errors.Is(res.Failure, ErrInvalidAction), "got %v", res.Failure.Cause)
		})
	}
}

func TestExtract_AcceptsAliases(t *testing.T) {
	raw := `{"thought":"t","text":"x","experience":"ducks bite","actions":[` +
		`{"type":"move","pos":{"x":3,"y":4}},{"type":"use","itemName":"apple"},{"type":"attack","count":2}]}`

	res := Extract(raw)
	require.True(t, res.OK(), "failure: %v", res.Failure)
	assert.Equal(t, "ducks bite", res.Decision.Experience)
	assert.Equal(t, []Action{Move{Pos: Position{3, 4}}, Use{ItemName: "apple"}, Attack{Count: 2}}, res.Decision.Actions)
}

func TestDecision_MarshalUsesPromptSchema(t *testing.T) {
	d := Decision{
		Thought: "t",
		Text:    "hi",
		Actions: []Action{Move{Pos: Position{1, 2}}, Use{ItemName: "axe"}, Attack{Count: 2}, Interact{}},
	}
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"thought":"t","text":"hi","actions":[`+
		`{"type":"move","pos":[1,2]},{"type":"use","item_name":"axe"},{"type":"attack","sum":2},{"type":"interact"}]}`, string(b))
}
