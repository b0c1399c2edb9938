package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/clipnetic/clipnetic/internal/config"
	"github.com/clipnetic/clipnetic/internal/ports"
	"github.com/clipnetic/clipnetic/internal/ports/adapters/asd"
	"github.com/clipnetic/clipnetic/internal/ports/adapters/execrun"
	"github.com/clipnetic/clipnetic/internal/ports/adapters/ffmpeg"
	"github.com/clipnetic/clipnetic/internal/ports/adapters/localstore"
	"github.com/clipnetic/clipnetic/internal/ports/adapters/openrouter"
	"github.com/clipnetic/clipnetic/internal/ports/adapters/s3store"
	"github.com/clipnetic/clipnetic/internal/ports/adapters/whispercpp"
	"github.com/clipnetic/clipnetic/internal/types"
	"github.com/clipnetic/clipnetic/internal/usecase"
)

// Build wires the adapters named by cfg into a Usecase. rec may be nil.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger, rec usecase.Recorder) (*usecase.Usecase, error) {
	store, err := NewStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	run := execrun.New(log.With().Str("component", "execrun").Logger())
	if cfg.Tools.KillGrace > 0 {
		run.GracePeriod = cfg.Tools.KillGrace
	}

	video := ffmpeg.New(run, cfg.Tools.FFmpeg, cfg.Tools.FFprobe)
	video.FontsDir = cfg.Tools.FontsDir

	asr := whispercpp.New(run, cfg.Tools.WhisperBin, cfg.Tools.WhisperModel)
	asr.Threads = cfg.Tools.WhisperThreads

	llm := openrouter.New(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL, log.With().Str("component", "openrouter").Logger())
	llm.MinSec = cfg.Selector.MinSec
	llm.MaxSec = cfg.Selector.MaxSec
	llm.MaxClips = cfg.Selector.MaxClips

	tracker := asd.New(run, cfg.Tools.TrackerBin, cfg.Tools.TrackerArgs)

	deps := usecase.Deps{
		Video:    video,
		ASR:      asr,
		Proposer: llm,
		Tracker:  tracker,
		Store:    store,
		Log:      log,
		Recorder: rec,
	}
	return usecase.New(deps, Options(cfg)), nil
}

func Options(cfg config.Config) usecase.Options {
	return usecase.Options{
		WorkRoot:        cfg.Pipeline.WorkDir,
		Selector:        cfg.Selector.Moments(),
		Crop:            cfg.Crop.Planner(),
		ClipConcurrency: cfg.Pipeline.ClipConcurrency,
	}
}

func NewStore(ctx context.Context, cfg config.StorageConfig) (ports.ObjectStore, error) {
	switch cfg.Backend {
	case "local":
		return localstore.New(cfg.LocalRoot)
	case "s3", "":
		return s3store.New(ctx, cfg.Config)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// RunOnce processes one source key and writes manifest.json into a fresh run
// directory under outRoot. The manifest is written even when some clips were
// aborted; a request-fatal error skips it.
func RunOnce(ctx context.Context, uc *usecase.Usecase, req usecase.Request, outRoot string, log zerolog.Logger) (string, types.Manifest, error) {
	if outRoot == "" {
		outRoot = "out"
	}
	runOutDir := buildRunOutDir(outRoot, req.SourceKey, time.Now().UTC())

	res, err := uc.Process(ctx, req)
	if err != nil {
		return "", res.Manifest, err
	}

	if err := os.MkdirAll(runOutDir, 0o755); err != nil {
		return "", res.Manifest, err
	}
	b, err := json.MarshalIndent(res.Manifest, "", "  ")
	if err != nil {
		return "", res.Manifest, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(runOutDir, "manifest.json")
	if err := os.WriteFile(manifestPath, b, 0o644); err != nil {
		return "", res.Manifest, err
	}
	log.Info().Int("clips", len(res.Manifest.Clips)).Str("path", manifestPath).Msg("manifest written")
	return manifestPath, res.Manifest, nil
}

func buildRunOutDir(outRoot, sourceKey string, now time.Time) string {
	base := path.Base(filepath.ToSlash(sourceKey))
	name := normalizePathSegment(strings.TrimSuffix(base, path.Ext(base)))
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", sourceKey, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}
