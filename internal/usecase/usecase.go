package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/clipnetic/clipnetic/internal/domain/cropplan"
	"github.com/clipnetic/clipnetic/internal/domain/moments"
	"github.com/clipnetic/clipnetic/internal/domain/subtitles"
	"github.com/clipnetic/clipnetic/internal/ports"
	"github.com/clipnetic/clipnetic/internal/types"
)

const tracerName = "github.com/clipnetic/clipnetic/internal/usecase"

// Recorder receives clip outcomes, typically for metrics.
type Recorder interface {
	ClipFinished(status types.ClipStatus, stage Stage)
}

type nopRecorder struct{}

func (nopRecorder) ClipFinished(types.ClipStatus, Stage) {}

type Deps struct {
	Video    ports.VideoTool
	ASR      ports.ASR
	Proposer ports.MomentProposer
	Tracker  ports.Tracker
	Store    ports.ObjectStore
	Log      zerolog.Logger
	Recorder Recorder
}

type Options struct {
	// WorkRoot holds one working directory per request.
	WorkRoot  string
	Selector  moments.Config
	Crop      cropplan.Config
	Subtitles subtitles.Style
	// ClipConcurrency above 1 runs clip jobs in parallel. The default is
	// sequential since every clip competes for the same GPU and encoder.
	ClipConcurrency int
}

type Usecase struct {
	d      Deps
	opt    Options
	tracer trace.Tracer

	// removeAll and newID are swapped in tests.
	removeAll func(string) error
	newID     func() string
}

func New(d Deps, opt Options) *Usecase {
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	if opt.WorkRoot == "" {
		opt.WorkRoot = os.TempDir()
	}
	if opt.Crop.TargetW <= 0 || opt.Crop.TargetH <= 0 {
		def := cropplan.DefaultConfig()
		opt.Crop.TargetW, opt.Crop.TargetH = def.TargetW, def.TargetH
	}
	if opt.Subtitles.PlayResX == 0 {
		opt.Subtitles = subtitles.DefaultStyle()
	}
	return &Usecase{
		d:         d,
		opt:       opt,
		tracer:    otel.Tracer(tracerName),
		removeAll: os.RemoveAll,
		newID:     func() string { return uuid.NewString() },
	}
}

type Request struct {
	SourceKey      string
	UploadedFileID string
	// RequestID names the working directory; generated when empty.
	RequestID string
}

type Result struct {
	Manifest types.Manifest
}

// Process runs one request end to end: retrieve, transcribe, select moments,
// then run every accepted clip through its state machine. Per-clip failures
// are reported in the manifest; only retrieval, transcription and context
// cancellation fail the request. The request working directory is removed
// once, on every exit path.
func (u *Usecase) Process(ctx context.Context, req Request) (res Result, err error) {
	if strings.TrimSpace(req.SourceKey) == "" {
		return Result{}, errors.New("source key is empty")
	}
	id := req.RequestID
	if id == "" {
		id = u.newID()
	}
	log := u.d.Log.With().Str("request_id", id).Str("s3_key", req.SourceKey).Logger()

	ctx, span := u.tracer.Start(ctx, "process", trace.WithAttributes(
		attribute.String("request.id", id),
		attribute.String("source.key", req.SourceKey),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	workdir := filepath.Join(u.opt.WorkRoot, requestDirName(req.SourceKey, id))
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create workdir: %w", err)
	}
	defer func() {
		if rmErr := u.removeAll(workdir); rmErr != nil {
			log.Warn().Err(rmErr).Str("workdir", workdir).Msg("cleanup failed")
		}
	}()

	res.Manifest = types.Manifest{SourceKey: req.SourceKey, UploadedFileID: req.UploadedFileID, Clips: []types.ManifestClip{}}

	source := filepath.Join(workdir, "input"+sourceExt(req.SourceKey))
	if err := u.stage(ctx, "retrieve", func(ctx context.Context) error {
		return u.d.Store.Download(ctx, req.SourceKey, source)
	}); err != nil {
		return res, wrapAs(types.ErrRetrieval, err)
	}
	log.Info().Msg("source downloaded")

	var words []types.WordSegment
	if err := u.stage(ctx, "transcribe", func(ctx context.Context) error {
		wav := filepath.Join(workdir, "input.wav")
		if err := u.d.Video.ExtractAudio(ctx, source, wav); err != nil {
			return err
		}
		var err error
		words, err = u.d.ASR.Transcribe(ctx, wav, workdir)
		return err
	}); err != nil {
		return res, wrapAs(types.ErrTranscription, err)
	}
	log.Info().Int("words", len(words)).Msg("transcribed")

	intervals := u.selectMoments(ctx, log, words, &res.Manifest)
	if len(intervals) == 0 {
		log.Info().Msg("no clips selected")
		return res, ctx.Err()
	}

	clips := make([]types.ManifestClip, len(intervals))
	runOne := func(i int) {
		clips[i] = u.runClip(ctx, log, clipInput{
			source:    source,
			sourceKey: req.SourceKey,
			words:     words,
			interval:  intervals[i],
			workdir:   filepath.Join(workdir, fmt.Sprintf("clip_%d", intervals[i].Index)),
		})
	}
	if u.opt.ClipConcurrency <= 1 {
		for i := range intervals {
			runOne(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(u.opt.ClipConcurrency)
		for i := range intervals {
			g.Go(func() error {
				runOne(i)
				return nil
			})
		}
		_ = g.Wait()
	}
	res.Manifest.Clips = clips

	done := 0
	for _, c := range clips {
		if c.Status == types.ClipDone {
			done++
		}
	}
	log.Info().Int("clips", len(clips)).Int("done", done).Msg("request finished")
	return res, ctx.Err()
}

// selectMoments asks the proposer for candidates and validates them. A
// proposer failure is treated like unparsable output: no candidates.
func (u *Usecase) selectMoments(ctx context.Context, log zerolog.Logger, words []types.WordSegment, m *types.Manifest) []types.ClipInterval {
	_, span := u.tracer.Start(ctx, "select")
	defer span.End()

	raw, err := u.d.Proposer.Propose(ctx, words)
	if err != nil {
		log.Warn().Err(err).Msg("moment proposer failed; continuing with no candidates")
		span.RecordError(err)
		raw = ""
	}
	sel := moments.Select(words, raw, u.opt.Selector)
	if sel.ParseErr != nil {
		log.Warn().Err(sel.ParseErr).Msg("proposer output unusable")
	}
	if vErr := sel.Err(); vErr != nil {
		log.Info().Err(vErr).Msg("candidates rejected")
	}
	m.Rejected = sel.Rejected
	span.SetAttributes(
		attribute.Int("moments.accepted", len(sel.Intervals)),
		attribute.Int("moments.rejected", len(sel.Rejected)),
	)
	return sel.Intervals
}

func (u *Usecase) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := u.tracer.Start(ctx, name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// PublishKey is where clip index i of sourceKey is uploaded: next to the
// source, as clip_<i>.mp4.
func PublishKey(sourceKey string, index int) string {
	name := fmt.Sprintf("clip_%d.mp4", index)
	dir := path.Dir(sourceKey)
	if dir == "." || dir == "/" {
		return name
	}
	return dir + "/" + name
}

func wrapAs(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

func sourceExt(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ext == "" || len(ext) > 5 {
		return ".mp4"
	}
	return ext
}

func requestDirName(sourceKey, id string) string {
	name := normalizePathSegment(strings.TrimSuffix(path.Base(sourceKey), path.Ext(sourceKey)))
	if name == "" {
		name = "input"
	}
	if len(name) > 40 {
		name = name[:40]
	}
	return name + "-" + normalizePathSegment(id)
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
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
