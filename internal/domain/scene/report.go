package scene

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Unavailable is the report used when a snapshot cannot be summarized.
const Unavailable = "## Scene\n> Scene unavailable: the world snapshot could not be analysed this cycle.\n"

// Summarizer renders a world snapshot as a markdown report. Tables are used for
// anything positional because models compare coordinates far better in tables.
type Summarizer struct{}

func (Summarizer) Summarize(raw json.RawMessage) (string, error) {
	ws, err := ParseWorldState(raw)
	if err != nil {
		return "", err
	}
	return Render(ws), nil
}

func Render(ws WorldState) string {
	var b strings.Builder
	writeCharacter(&b, ws)
	writeOtherPlayers(&b, ws.OtherPlayers)
	writeTargets(&b, ws.PlayerStatus.Position(), ws.Entities)
	return b.String()
}

func writeCharacter(b *strings.Builder, ws WorldState) {
	p := ws.PlayerStatus
	pos := p.Position()

	b.WriteString("## 1. Character status\n")
	fmt.Fprintf(b, "- **Identity**: %s (ID: %s)\n", orDefault(p.PlayerName, "unknown"), orDefault(p.PlayerID, "0"))
	fmt.Fprintf(b, "- **Personality**: %s\n", orDefault(p.Personality, "ordinary"))
	fmt.Fprintf(b, "- **Position**: `%s`\n", formatPoint(pos))
	if p.IsSleep {
		b.WriteString("- **State**: asleep\n")
	} else {
		b.WriteString("- **State**: awake\n")
	}
	b.WriteString("### Vitals\n")
	fmt.Fprintf(b, "- **HP**: %s\n", num(p.HP))
	fmt.Fprintf(b, "- **Satiety**: %s | **Hydration**: %s\n", num(p.Satiety), num(p.Hydration))
	fmt.Fprintf(b, "- **Sanity**: %s\n", num(p.Sanity))
	b.WriteString("### Combat\n")
	fmt.Fprintf(b, "- **Attack**: %s | **Defense**: %s\n", num(p.AttackPower), num(p.Defense))
	b.WriteString("### History\n")
	fmt.Fprintf(b, "- **Chat**: %s\n", rawOrEmpty(p.ChatHistory))
	fmt.Fprintf(b, "- **Experiences**: %s\n", rawOrEmpty(p.Experiences))

	if polys := ws.MapMetadata.NavPolygons; len(polys) > 0 && len(polys[0]) > 0 {
		minX, maxX := math.Inf(1), math.Inf(-1)
		minY, maxY := math.Inf(1), math.Inf(-1)
		for _, pt := range polys[0] {
			if len(pt) < 2 {
				continue
			}
			minX, maxX = math.Min(minX, pt[0]), math.Max(maxX, pt[0])
			minY, maxY = math.Min(minY, pt[1]), math.Max(maxY, pt[1])
		}
		if !math.IsInf(minX, 0) {
			fmt.Fprintf(b, "- **World bounds**: X: `[%s ~ %s]`, Y: `[%s ~ %s]`\n", num(minX), num(maxX), num(minY), num(maxY))
		}
	}

	items := make([]string, 0, len(p.Inventory))
	for _, it := range p.Inventory {
		if it == nil {
			continue
		}
		items = append(items, fmt.Sprintf("`%s`x%s(%s)", it.Name, num(it.Amount), it.Describe))
	}
	if len(items) > 0 {
		fmt.Fprintf(b, "- **Inventory**: %s\n", strings.Join(items, " | "))
	} else {
		b.WriteString("- **Inventory**: (empty)\n")
	}
}

func writeOtherPlayers(b *strings.Builder, others []OtherPlayer) {
	b.WriteString("\n## 2. Nearby players\n")
	if len(others) == 0 {
		b.WriteString("> No other players in perception range.\n")
		return
	}
	b.WriteString("| Name | Position | Note |\n")
	b.WriteString("| :--- | :--- | :--- |\n")
	for _, o := range others {
		fmt.Fprintf(b, "| %s | `%s` | present |\n", orDefault(o.NPCName, "unknown entity"), formatLoosePosition(o.Position))
	}
}

func writeTargets(b *strings.Builder, origin [2]float64, entities []Entity) {
	b.WriteString("\n## 3. Targets\n")
	b.WriteString("| Target | Center | Distance | Description | Movement limit | Flags |\n")
	b.WriteString("| :--- | :--- | :--- | :--- | :--- | :--- |\n")

	type row struct {
		e    Entity
		dist float64
	}
	rows := make([]row, 0, len(entities))
	for _, e := range entities {
		d := math.Hypot(e.Center[0]-origin[0], e.Center[1]-origin[1])
		rows = append(rows, row{e: e, dist: math.Round(d*10) / 10})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].dist < rows[j].dist })

	for _, r := range rows {
		e := r.e
		fmt.Fprintf(b, "| %s | `%s` | %s | %s | %s | %s |\n",
			e.Name, formatPoint([2]float64{e.Center[0], e.Center[1]}), num(r.dist), describe(e), movementLimit(e), flags(e))
	}
}

func describe(e Entity) string {
	var tags []string
	if e.IsCrop {
		tags = append(tags, "["+orDefault(e.StageName, "growing")+"]")
		if e.TimeLeftSec > 0 {
			tags = append(tags, num(e.TimeLeftSec)+"s left")
		}
	}
	if e.CanWater {
		tags = append(tags, "needs water")
	}
	if e.CanHarvest {
		tags = append(tags, "harvestable")
	}
	out := strings.TrimSpace(strings.Join(tags, " ") + " " + e.Describe)
	if e.HP != nil {
		out += fmt.Sprintf(" (HP:%s)", num(*e.HP))
	}
	return out
}

func movementLimit(e Entity) string {
	if len(e.Rect) != 4 {
		return "-"
	}
	x, y, w, h := e.Rect[0], e.Rect[1], e.Rect[2], e.Rect[3]
	span := fmt.Sprintf("(%s,%s) to (%s,%s)", num(x), num(y), num(x+w), num(y+h))
	if e.HasPhysicsLayer {
		return "blocked: " + span
	}
	return "area: " + span
}

func flags(e Entity) string {
	attack, interact := "no attack", "no interact"
	if e.CanAttack {
		attack = "attackable"
	}
	if e.CanInteract {
		interact = "interactable"
	}
	return attack + "|" + interact
}

func formatLoosePosition(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "unknown position"
	}
	var xy struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if raw[0] == '{' && json.Unmarshal(raw, &xy) == nil {
		return fmt.Sprintf("(%s, %s)", num(xy.X), num(xy.Y))
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

func formatPoint(p [2]float64) string {
	return "[" + num(p[0]) + ", " + num(p[1]) + "]"
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func rawOrEmpty(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "[]"
	}
	return string(raw)
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
