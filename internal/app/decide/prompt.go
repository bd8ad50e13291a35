package decide

import (
	"fmt"
	"strings"
)

// staticInstructions is shared by every request. Keep it free of per-request data:
// backends with prefix caching only reuse it while it stays byte-identical.
const staticInstructions = `# Role
You are an NPC living in a 2D survival game. Decide how to stay alive.
Satiety or hydration below 50 drains HP over time. At 0 HP you may not act, speak or think.

# Output Format
Output exactly one valid JSON object. No prose before or after it, no markdown code fences.

## JSON Structure
{
  "thought": "string (your private reasoning)",
  "text": "string (what you say out loud)",
  "experience": "string (optional, a lesson worth remembering)",
  "actions": [
    { "type": "move", "pos": [number, number] },
    { "type": "use", "item_name": "string" },
    { "type": "attack", "sum": number },
    { "type": "interact" }
  ]
}

# Action Rules
- actions: a non-empty array; every entry must match one of the shapes above.
- move: pos must be inside the world bounds and outside every blocked area in the target table.
- use: item_name must be an item currently in your inventory. Seeds can only be used on farmland.
- attack: sum is an integer, the number of strikes.
- interact: only valid next to an interactable target.
- Constraints: no undefined fields, never return null.
`

const taskCue = `# Task
Study the target table above, stay in character and reply with your next decision as JSON.
`

type Prompt struct {
	System string
	User   string
}

func (p Prompt) Full() string {
	return p.System + "\n" + p.User
}

type PromptBuilder struct {
	static string
}

func NewPromptBuilder() PromptBuilder {
	return PromptBuilder{static: staticInstructions}
}

// Static returns the shared prefix every prompt starts with.
func (b PromptBuilder) Static() string {
	if b.static == "" {
		return staticInstructions
	}
	return b.static
}

// Build composes static block, persona, scene report and the task cue, in that order.
func (b PromptBuilder) Build(req Request, sceneReport string) Prompt {
	var persona strings.Builder
	persona.WriteString("# Persona\n")
	fmt.Fprintf(&persona, "- Name: %s\n", fallback(req.RequesterName, req.RequesterID))
	fmt.Fprintf(&persona, "- ID: %s\n", req.RequesterID)
	if p := strings.TrimSpace(req.Persona); p != "" {
		fmt.Fprintf(&persona, "- Personality: %s\n", p)
	}

	return Prompt{
		System: b.Static() + "\n" + persona.String(),
		User:   "# Environment Report\n" + sceneReport + "\n" + taskCue,
	}
}

func fallback(s, alt string) string {
	if strings.TrimSpace(s) == "" {
		return alt
	}
	return s
}
