package moments

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clipnetic/clipnetic/internal/types"
)

// RawCandidate is one element of the proposer's JSON list, still untrusted.
// Start/End are only meaningful when OK is true.
type RawCandidate struct {
	Start  float64
	End    float64
	OK     bool
	Reason string
}

// ParseCandidates is the strict parse boundary for proposer output. It strips
// markdown fences, then expects a JSON array. Elements that are not objects
// with numeric "start" and "end" come back with OK=false so the caller can
// report them. A non-array payload is an ErrParse.
func ParseCandidates(raw string) ([]RawCandidate, error) {
	body, err := extractJSONList(raw)
	if err != nil {
		return nil, err
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(body), &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrParse, err)
	}

	out := make([]RawCandidate, 0, len(elems))
	for _, el := range elems {
		out = append(out, decodeCandidate(el))
	}
	return out, nil
}

func decodeCandidate(el json.RawMessage) RawCandidate {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(el, &m); err != nil || m == nil {
		return RawCandidate{Reason: "not an object"}
	}
	start, ok := number(m, "start")
	if !ok {
		return RawCandidate{Reason: `missing numeric "start"`}
	}
	end, ok := number(m, "end")
	if !ok {
		return RawCandidate{Reason: `missing numeric "end"`}
	}
	return RawCandidate{Start: start, End: end, OK: true}
}

// number accepts JSON numbers only; "12.5" as a string is rejected.
func number(m map[string]json.RawMessage, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	// Unmarshal leaves null as 0 without error.
	v = json.RawMessage(strings.TrimSpace(string(v)))
	if len(v) == 0 || !strings.ContainsRune("-0123456789", rune(v[0])) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, false
	}
	return f, true
}

func extractJSONList(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", fmt.Errorf("%w: empty output", types.ErrParse)
	}

	// Strip markdown code fences.
	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		} else {
			t = strings.TrimPrefix(t, "```")
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	if strings.HasPrefix(t, "[") {
		return t, nil
	}

	// Best-effort: a list wrapped in prose.
	start := strings.Index(t, "[")
	end := strings.LastIndex(t, "]")
	if start >= 0 && end > start {
		return t[start : end+1], nil
	}
	return "", fmt.Errorf("%w: no JSON list in %q", types.ErrParse, truncate(t, 120))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
