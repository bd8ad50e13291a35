package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	reasoningOpen  = "<think>"
	reasoningClose = "</think>"
	codeFence      = "```"
)

var ErrNoCandidate = errors.New("no object literal in output")

// Failure describes output that could not be turned into a Decision.
// Raw always holds the untouched backend text.
type Failure struct {
	Raw   string
	Cause error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("unparseable output: %v", f.Cause)
}

func (f *Failure) Unwrap() error { return f.Cause }

// Result is the outcome of Extract. Exactly one of Decision (OK) or Failure is meaningful.
type Result struct {
	Decision  Decision
	Reasoning string
	Repaired  bool
	Failure   *Failure
}

func (r Result) OK() bool { return r.Failure == nil }

// Extract pulls a Decision out of free-form model output. It never panics; every
// problem is reported through Result.Failure.
func Extract(raw string) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{Failure: &Failure{Raw: raw, Cause: fmt.Errorf("extract panic: %v", p)}}
		}
	}()

	body, reasoning := splitReasoning(raw)
	res.Reasoning = reasoning

	candidate, ok := outermostObject(body)
	if !ok {
		res.Failure = &Failure{Raw: raw, Cause: ErrNoCandidate}
		return res
	}

	d, err := parseCandidate(candidate)
	var syntaxErr *json.SyntaxError
	if err != nil && errors.As(err, &syntaxErr) {
		repaired := repair(candidate)
		if repaired != candidate {
			d, err = parseCandidate(repaired)
			res.Repaired = err == nil
		}
	}
	if err != nil {
		res.Failure = &Failure{Raw: raw, Cause: err}
		return res
	}
	res.Decision = d
	return res
}

func parseCandidate(s string) (Decision, error) {
	var d Decision
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return Decision{}, err
	}
	if err := d.Validate(); err != nil {
		return Decision{}, err
	}
	return d, nil
}

// splitReasoning removes <think>…</think> spans. Models that only emit the closing
// marker have everything before it treated as reasoning.
func splitReasoning(raw string) (body, reasoning string) {
	body = raw
	var parts []string
	for {
		start := strings.Index(body, reasoningOpen)
		end := strings.Index(body, reasoningClose)
		switch {
		case start >= 0 && end > start:
			parts = append(parts, strings.TrimSpace(body[start+len(reasoningOpen):end]))
			body = body[:start] + body[end+len(reasoningClose):]
			continue
		case end >= 0 && (start < 0 || start > end):
			parts = append(parts, strings.TrimSpace(body[:end]))
			body = body[end+len(reasoningClose):]
			continue
		case start >= 0:
			// unterminated reasoning: nothing after it can be trusted as the answer
			parts = append(parts, strings.TrimSpace(body[start+len(reasoningOpen):]))
			body = body[:start]
		}
		break
	}
	return body, strings.Join(parts, "\n")
}

// outermostObject returns the greedy span from the first '{' to the last '}'.
// Code fences wrapping the object fall outside the span.
// Decisions nest objects inside "actions", so the shortest match would truncate them.
func outermostObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// repair drops stray code fence markers and trailing commas before '}' or ']'.
// String literals are copied untouched.
func repair(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case strings.HasPrefix(s[i:], codeFence):
			i += len(codeFence)
			for i < len(s) && isFenceLangByte(s[i]) {
				i++
			}
			i--
		case c == ',' && closesAfterSpace(s[i+1:]):
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func closesAfterSpace(s string) bool {
	rest := strings.TrimLeft(s, " \t\r\n")
	return rest != "" && (rest[0] == '}' || rest[0] == ']')
}

func isFenceLangByte(c byte) bool {
	return c == '_' || c == '-' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
