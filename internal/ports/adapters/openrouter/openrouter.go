package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipnetic/clipnetic/internal/ports"
	"github.com/clipnetic/clipnetic/internal/types"
)

const (
	defaultModel   = "anthropic/claude-3.5-sonnet"
	requestTimeout = 90 * time.Second
)

// Adapter asks an OpenRouter chat model for highlight candidates. It returns
// the model text untouched; parsing and validation happen in the selector.
type Adapter struct {
	key     string
	model   string
	baseURL string
	client  *http.Client
	log     zerolog.Logger

	MinSec   float64
	MaxSec   float64
	MaxClips int
}

func New(apiKey, model, baseURL string, log zerolog.Logger) *Adapter {
	if model == "" {
		model = defaultModel
	}
	return &Adapter{
		key:      apiKey,
		model:    model,
		baseURL:  normalizeBaseURL(baseURL),
		client:   &http.Client{Timeout: 5 * time.Minute},
		log:      log,
		MinSec:   30,
		MaxSec:   60,
		MaxClips: 3,
	}
}

var _ ports.MomentProposer = (*Adapter)(nil)

type promptWord struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

func (a *Adapter) Propose(ctx context.Context, words []types.WordSegment) (string, error) {
	if len(words) == 0 {
		return "[]", nil
	}
	tw := make([]promptWord, 0, len(words))
	for _, w := range words {
		tw = append(tw, promptWord{Start: w.Start, End: w.End, Word: w.Text})
	}
	transcript, err := json.Marshal(tw)
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}

	payload := map[string]any{
		"model":       a.model,
		"stream":      false,
		"temperature": 0,
		"messages": []map[string]any{
			{"role": "user", "content": a.buildPrompt(transcript)},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.baseURL+"/api/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("openrouter timeout after %s (model=%s)", requestTimeout, a.model)
		}
		return "", fmt.Errorf("openrouter: %s", redactSecrets(err.Error(), a.key))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if readErr != nil {
			return "", fmt.Errorf("openrouter status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return "", fmt.Errorf("openrouter status %d: %s", resp.StatusCode, truncate(redactSecrets(string(rb), a.key), 400))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("decode openrouter response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return "", errors.New("openrouter: no choices")
	}
	content, err := messageContentToString(raw.Choices[0].Message.Content)
	if err != nil {
		return "", err
	}

	a.log.Debug().
		Str("model", a.model).
		Int("words", len(words)).
		Dur("took", time.Since(start)).
		Int("content_len", len(content)).
		Msg("moment proposal received")
	return content, nil
}

func (a *Adapter) buildPrompt(transcript []byte) string {
	return fmt.Sprintf(
		"You pick highlight moments from a podcast or talking-head video for short vertical clips. "+
			"Return ONLY a JSON list (no markdown, no prose) of objects with numeric \"start\" and \"end\" in seconds, "+
			"for example [{\"start\": 12.48, \"end\": 52.9}]. "+
			"Copy start and end verbatim from the transcript timestamps: start must be the start of a word and end the end of a word. "+
			"Each clip must last between %g and %g seconds, clips must not overlap, and return at most %d of them. "+
			"Prefer self-contained stories, answers or strong opinions that begin at the start of a sentence and end on a complete thought."+
			"\n\nTranscript JSON:\n%s",
		a.MinSec, a.MaxSec, a.MaxClips, transcript,
	)
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("openrouter: unexpected content type %T", v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
