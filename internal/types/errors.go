package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Request-fatal.
	ErrAuth          = errors.New("unauthorized")
	ErrRetrieval     = errors.New("source retrieval failed")
	ErrTranscription = errors.New("transcription failed")

	// Degrading: the request continues with fewer (or zero) candidates.
	ErrParse      = errors.New("proposer output unparsable")
	ErrValidation = errors.New("candidate rejected")

	// Per-clip: abort the owning clip job only.
	ErrMissingArtifact = errors.New("tracker artifact missing")
	ErrRender          = errors.New("render failed")
	ErrPublish         = errors.New("publish failed")
)

// Rejection records why one proposed candidate was dropped.
type Rejection struct {
	Position int     `json:"position"`
	Start    float64 `json:"start,omitempty"`
	End      float64 `json:"end,omitempty"`
	Reason   string  `json:"reason"`
}

// ValidationError lists every rejected candidate of one selection pass.
type ValidationError struct {
	Rejected []Rejection
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Rejected))
	for _, r := range e.Rejected {
		parts = append(parts, fmt.Sprintf("#%d: %s", r.Position, r.Reason))
	}
	return fmt.Sprintf("%d candidate(s) rejected: %s", len(e.Rejected), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// MissingArtifactError is returned when the tracker exits without leaving a
// readable artifact at Path.
type MissingArtifactError struct {
	Path  string
	Cause error
}

func (e *MissingArtifactError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tracker artifact %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("tracker artifact %s: missing", e.Path)
}

func (e *MissingArtifactError) Is(target error) bool { return target == ErrMissingArtifact }

func (e *MissingArtifactError) Unwrap() error { return e.Cause }

// ToolError is a failed external tool invocation (ffmpeg, tracker, whisper).
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s: exit code %d", e.Tool, e.ExitCode)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\n" + s
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Cause }
