// Package decision turns raw oracle replies into validated go/no-go
// decisions. The oracle is instructed to answer with bare JSON but is
// unreliable about code fences and surrounding chatter, so extraction is
// defensive: fences are stripped and the first balanced JSON value is
// located before unmarshalling.
package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks a reply that could not be turned into a usable
// decision. A recoverable per-firing failure: log, count, skip delivery.
var ErrMalformed = errors.New("malformed decision")

// Decision is the parsed output of one oracle call. Jobs historically
// used two spellings for the judgment key; both are accepted and treated
// identically. Ephemeral, never persisted.
type Decision struct {
	ShouldNotify *bool  `json:"shouldNotify,omitempty"`
	ShouldSend   *bool  `json:"shouldSend,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Message      string `json:"message,omitempty"`
}

// HasJudgment reports whether the reply carried either judgment key.
func (d Decision) HasJudgment() bool {
	return d.ShouldNotify != nil || d.ShouldSend != nil
}

// Approved is strict: only an explicit true under either key approves
// delivery. Absent or false never does.
func (d Decision) Approved() bool {
	if d.ShouldNotify != nil && *d.ShouldNotify {
		return true
	}
	if d.ShouldSend != nil && *d.ShouldSend {
		return true
	}
	return false
}

// Validate enforces the expected shape before the decision is acted on.
// Judgment jobs require a judgment key; an approving decision must carry
// a non-empty message.
func (d Decision) Validate(needJudgment bool) error {
	if needJudgment && !d.HasJudgment() {
		return fmt.Errorf("%w: reply carries no shouldNotify/shouldSend field", ErrMalformed)
	}
	if d.Approved() && strings.TrimSpace(d.Message) == "" {
		return fmt.Errorf("%w: approving decision has an empty message", ErrMalformed)
	}
	return nil
}

// Parse extracts and unmarshals a Decision from a raw oracle reply.
func Parse(raw string) (Decision, error) {
	cleaned, err := extractJSON(raw)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var d Decision
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return d, nil
}

// extractJSON returns the first JSON object or array in s: BOM and code
// fences stripped first, then a quick path when the remainder already
// starts with JSON, then a scan for the first balanced value.
func extractJSON(s string) (string, error) {
	s = trimBOM(strings.TrimSpace(s))
	if inner, ok := stripCodeFence(s); ok {
		s = strings.TrimSpace(inner)
	}
	if s == "" {
		return "", errors.New("empty reply")
	}
	if s[0] == '{' || s[0] == '[' {
		if out, ok := balancedFrom(s, 0); ok {
			return out, nil
		}
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			if out, ok := balancedFrom(s, i); ok {
				return out, nil
			}
		}
	}
	return "", errors.New("no balanced JSON value found")
}

// stripCodeFence unwraps a leading ``` or ~~~ fenced block, tolerating a
// language tag on the opening line. ok=false when s is not fenced or the
// block never closes.
func stripCodeFence(s string) (string, bool) {
	trimmed := strings.TrimLeft(s, " \t\r\n")
	fence := ""
	switch {
	case strings.HasPrefix(trimmed, "```"):
		fence = "```"
	case strings.HasPrefix(trimmed, "~~~"):
		fence = "~~~"
	default:
		return "", false
	}
	rest := trimmed[len(fence):]
	nl := strings.IndexByte(rest, '\n')
	if nl == -1 {
		return "", false
	}
	rest = rest[nl+1:]
	end := strings.Index(rest, fence)
	if end == -1 {
		return "", false
	}
	return rest[:end], true
}

// balancedFrom extracts the balanced JSON value opening at start,
// ignoring brackets inside strings and honouring escape sequences.
func balancedFrom(s string, start int) (string, bool) {
	if start >= len(s) || (s[start] != '{' && s[start] != '[') {
		return "", false
	}
	var (
		depth    []byte
		inString bool
		escaped  bool
	)
	depth = append(depth, s[start])
	for i := start + 1; i < len(s); i++ {
		c := s[i]
		if inString {
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
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth = append(depth, c)
		case '}', ']':
			top := depth[len(depth)-1]
			if (top == '{' && c != '}') || (top == '[' && c != ']') {
				return "", false
			}
			depth = depth[:len(depth)-1]
			if len(depth) == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "﻿")
}
