package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clipnetic/clipnetic/internal/domain/cropplan"
	"github.com/clipnetic/clipnetic/internal/domain/highlights"
	"github.com/clipnetic/clipnetic/internal/domain/subtitles"
	"github.com/clipnetic/clipnetic/internal/ports"
	"github.com/clipnetic/clipnetic/internal/types"
)

// Stage is a state of the per-clip state machine. Each state is reached by
// exactly one transition; Aborted is reachable from any of them.
type Stage string

const (
	StageCut            Stage = "cut"
	StageAudioExtracted Stage = "audio_extracted"
	StageTracked        Stage = "tracked"
	StagePlanned        Stage = "planned"
	StageRendered       Stage = "rendered"
	StageSubtitleBurned Stage = "subtitle_burned"
	StageDone           Stage = "done"
	StageAborted        Stage = "aborted"
)

type clipInput struct {
	source    string
	sourceKey string
	words     []types.WordSegment
	interval  types.ClipInterval
	workdir   string
}

// clipRun carries the artifacts produced so far by one clip job.
type clipRun struct {
	in  clipInput
	job types.ClipJob

	segment  string
	audio    string
	vertical string
	final    string

	tracks ports.TrackResult
	info   ports.VideoInfo
	geo    cropplan.Geometry
	plan   []types.CropPlan
	script string
	key    string
}

type transition struct {
	to  Stage
	run func(context.Context, *clipRun) error
}

func (u *Usecase) transitions() []transition {
	return []transition{
		{StageCut, u.cut},
		{StageAudioExtracted, u.extractAudio},
		{StageTracked, u.track},
		{StagePlanned, u.planCrop},
		{StageRendered, u.render},
		{StageSubtitleBurned, u.burnSubtitles},
		{StageDone, u.publish},
	}
}

// runClip drives one interval through the state machine. It never returns an
// error: a failed transition aborts this clip only. The clip's working
// directory is removed whatever the outcome.
func (u *Usecase) runClip(ctx context.Context, log zerolog.Logger, in clipInput) types.ManifestClip {
	iv := in.interval
	log = log.With().Int("clip", iv.Index).Float64("start", iv.Start).Float64("end", iv.End).Logger()

	text := subtitles.Text(in.words, iv)
	score := highlights.Score(in.words, iv)
	mc := types.ManifestClip{
		Index:     iv.Index,
		StartSec:  iv.Start,
		EndSec:    iv.End,
		Text:      text,
		InfoScore: score.Info,
		HookScore: score.Hook,
	}

	ctx, span := u.tracer.Start(ctx, "clip", trace.WithAttributes(attribute.Int("clip.index", iv.Index)))
	defer span.End()

	abort := func(at Stage, err error) types.ManifestClip {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Str("stage", string(at)).Str("reason", abortReason(err)).Msg("clip aborted")
		u.d.Recorder.ClipFinished(types.ClipAborted, at)
		mc.Status = types.ClipAborted
		mc.Stage = string(at)
		mc.Error = err.Error()
		return mc
	}

	if err := os.MkdirAll(in.workdir, 0o755); err != nil {
		return abort(StageCut, fmt.Errorf("create clip workdir: %w", err))
	}
	defer func() {
		if err := u.removeAll(in.workdir); err != nil {
			log.Warn().Err(err).Msg("clip cleanup failed")
		}
	}()

	c := &clipRun{
		in:  in,
		job: types.ClipJob{SourcePath: in.source, Interval: iv, WorkDir: in.workdir},
	}
	for _, t := range u.transitions() {
		if err := ctx.Err(); err != nil {
			return abort(t.to, err)
		}
		sctx, sspan := u.tracer.Start(ctx, "clip."+string(t.to))
		err := t.run(sctx, c)
		if err != nil {
			sspan.RecordError(err)
			sspan.SetStatus(codes.Error, err.Error())
		}
		sspan.End()
		if err != nil {
			return abort(t.to, err)
		}
		log.Debug().Str("stage", string(t.to)).Msg("clip stage reached")
	}

	u.d.Recorder.ClipFinished(types.ClipDone, StageDone)
	log.Info().Str("key", c.key).Msg("clip published")
	mc.Status = types.ClipDone
	mc.Stage = string(StageDone)
	mc.Key = c.key
	return mc
}

// cut copies [start, end) of the source verbatim; no re-snapping here.
func (u *Usecase) cut(ctx context.Context, c *clipRun) error {
	c.segment = filepath.Join(c.job.WorkDir, "segment.mp4")
	return u.d.Video.Cut(ctx, c.job.SourcePath, c.job.Interval, c.segment)
}

func (u *Usecase) extractAudio(ctx context.Context, c *clipRun) error {
	c.audio = filepath.Join(c.job.WorkDir, "audio.wav")
	return u.d.Video.ExtractAudio(ctx, c.segment, c.audio)
}

func (u *Usecase) track(ctx context.Context, c *clipRun) error {
	res, err := u.d.Tracker.Track(ctx, ports.TrackRequest{
		Video:   c.segment,
		Audio:   c.audio,
		WorkDir: c.job.WorkDir,
	})
	if err != nil {
		return err
	}
	c.tracks = res
	return nil
}

func (u *Usecase) planCrop(ctx context.Context, c *clipRun) error {
	info, err := u.d.Video.Probe(ctx, c.segment)
	if err != nil {
		return fmt.Errorf("%w: probe segment: %w", types.ErrRender, err)
	}
	if info.Frames <= 0 {
		return fmt.Errorf("%w: segment has no frames", types.ErrRender)
	}
	c.info = info

	cfg := u.opt.Crop
	c.plan = cropplan.Plan(cropplan.Input{
		Tracks:     c.tracks.Tracks,
		Scores:     c.tracks.Scores,
		FirstFrame: 0,
		LastFrame:  info.Frames - 1,
		Width:      info.Width,
		Height:     info.Height,
	}, cfg)
	if len(c.plan) != info.Frames {
		return fmt.Errorf("%w: crop plan covers %d of %d frames", types.ErrRender, len(c.plan), info.Frames)
	}
	c.geo = cropplan.NewGeometry(info.Width, info.Height, cfg.TargetW, cfg.TargetH)

	script, err := cropplan.SendCmdScript(c.plan, c.geo, info.FPS)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrRender, err)
	}
	c.script = filepath.Join(c.job.WorkDir, "crop.cmd")
	return os.WriteFile(c.script, []byte(script), 0o644)
}

func (u *Usecase) render(ctx context.Context, c *clipRun) error {
	c.vertical = filepath.Join(c.job.WorkDir, "vertical.mp4")
	return u.d.Video.RenderVertical(ctx, ports.RenderSpec{
		Segment:     c.segment,
		Audio:       c.audio,
		CropScript:  c.script,
		InitialCrop: c.geo.Rect(c.plan[0]),
		OutW:        u.opt.Crop.TargetW,
		OutH:        u.opt.Crop.TargetH,
		Out:         c.vertical,
	})
}

func (u *Usecase) burnSubtitles(ctx context.Context, c *clipRun) error {
	ass := subtitles.RenderVerticalASS(c.in.words, c.job.Interval, u.opt.Subtitles)
	assPath := filepath.Join(c.job.WorkDir, "subs.ass")
	if err := os.WriteFile(assPath, []byte(ass), 0o644); err != nil {
		return err
	}
	c.final = filepath.Join(c.job.WorkDir, fmt.Sprintf("clip_%d.mp4", c.job.Interval.Index))
	return u.d.Video.BurnSubtitles(ctx, c.vertical, assPath, c.final)
}

func (u *Usecase) publish(ctx context.Context, c *clipRun) error {
	key := PublishKey(c.in.sourceKey, c.job.Interval.Index)
	if err := u.d.Store.Upload(ctx, c.final, key, "video/mp4"); err != nil {
		return wrapAs(types.ErrPublish, err)
	}
	c.key = key
	return nil
}

// abortReason maps a clip error to a short label for logs.
func abortReason(err error) string {
	switch {
	case errors.Is(err, types.ErrMissingArtifact):
		return "missing_artifact"
	case errors.Is(err, types.ErrPublish):
		return "publish"
	case errors.Is(err, types.ErrRender):
		return "render"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, new(*types.ToolError)):
		return "tool_failed"
	default:
		return "other"
	}
}
