package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/clipnetic/clipnetic/internal/ports"
	"github.com/clipnetic/clipnetic/internal/types"
)

type Adapter struct {
	run     ports.Runner
	ffmpeg  string
	ffprobe string
	// FontsDir is passed to the subtitles filter when set.
	FontsDir string
}

func New(run ports.Runner, ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{run: run, ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

var _ ports.VideoTool = (*Adapter)(nil)

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (a *Adapter) Probe(ctx context.Context, path string) (ports.VideoInfo, error) {
	res, err := a.run.Run(ctx, a.ffprobe, []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate,nb_frames:format=duration",
		"-of", "json",
		path,
	}, "")
	if err != nil {
		return ports.VideoInfo{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(res.Stdout)
}

func parseProbe(b []byte) (ports.VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return ports.VideoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return ports.VideoInfo{}, fmt.Errorf("ffprobe: no video stream")
	}
	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return ports.VideoInfo{}, fmt.Errorf("ffprobe: invalid frame size %dx%d", s.Width, s.Height)
	}
	fps := parseRate(s.AvgFrameRate)
	if fps <= 0 {
		fps = parseRate(s.RFrameRate)
	}
	if fps <= 0 {
		return ports.VideoInfo{}, fmt.Errorf("ffprobe: unknown frame rate %q", s.RFrameRate)
	}
	sec, _ := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)

	frames, err := strconv.Atoi(s.NbFrames)
	if err != nil || frames <= 0 {
		frames = int(math.Round(sec * fps))
	}
	return ports.VideoInfo{
		Width:    s.Width,
		Height:   s.Height,
		FPS:      fps,
		Frames:   frames,
		Duration: time.Duration(sec * float64(time.Second)),
	}, nil
}

// parseRate reads "30000/1001" or "25".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// Cut re-encodes [iv.Start, iv.End) so the segment starts on an exact frame.
func (a *Adapter) Cut(ctx context.Context, src string, iv types.ClipInterval, out string) error {
	_, err := a.run.Run(ctx, a.ffmpeg, []string{
		"-y",
		"-ss", fmtSeconds(iv.Start),
		"-i", src,
		"-t", fmtSeconds(iv.Duration()),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-c:a", "aac",
		"-b:a", "192k",
		out,
	}, "")
	if err != nil {
		return fmt.Errorf("%w: ffmpeg cut: %w", types.ErrRender, err)
	}
	return nil
}

func (a *Adapter) ExtractAudio(ctx context.Context, in, outWav string) error {
	_, err := a.run.Run(ctx, a.ffmpeg, []string{
		"-y",
		"-i", in,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outWav,
	}, "")
	if err != nil {
		return fmt.Errorf("%w: ffmpeg extract audio: %w", types.ErrRender, err)
	}
	return nil
}

func (a *Adapter) RenderVertical(ctx context.Context, spec ports.RenderSpec) error {
	r := spec.InitialCrop
	vf := fmt.Sprintf("sendcmd=f=%s,crop=w=%d:h=%d:x=%d:y=%d,scale=%d:%d,setsar=1",
		escapeFilterPath(spec.CropScript), r.W, r.H, r.X, r.Y, spec.OutW, spec.OutH)
	_, err := a.run.Run(ctx, a.ffmpeg, []string{
		"-y",
		"-i", spec.Segment,
		"-i", spec.Audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-vf", vf,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		spec.Out,
	}, "")
	if err != nil {
		return fmt.Errorf("%w: ffmpeg render vertical: %w", types.ErrRender, err)
	}
	return nil
}

func (a *Adapter) BurnSubtitles(ctx context.Context, in, assPath, out string) error {
	vf := "subtitles=" + escapeFilterPath(assPath)
	if a.FontsDir != "" {
		vf = "subtitles=filename=" + escapeFilterPath(assPath) + ":fontsdir=" + escapeFilterPath(a.FontsDir)
	}
	_, err := a.run.Run(ctx, a.ffmpeg, []string{
		"-y",
		"-i", in,
		"-vf", vf,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
		"-c:a", "copy",
		"-movflags", "+faststart",
		out,
	}, "")
	if err != nil {
		return fmt.Errorf("%w: ffmpeg burn subtitles: %w", types.ErrRender, err)
	}
	return nil
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	p = strings.ReplaceAll(p, ",", "\\,")
	p = strings.ReplaceAll(p, "'", "\\'")
	return p
}
