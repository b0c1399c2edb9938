package ffmpeg

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/clipnetic/clipnetic/internal/ports"
	"github.com/clipnetic/clipnetic/internal/types"
)

type call struct {
	tool string
	args []string
}

type fakeRunner struct {
	calls  []call
	stdout []byte
	err    error
}

func (f *fakeRunner) Run(_ context.Context, tool string, args []string, _ string) (ports.ToolResult, error) {
	f.calls = append(f.calls, call{tool: tool, args: args})
	return ports.ToolResult{Stdout: f.stdout}, f.err
}

func TestParseProbe(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantW      int
		wantFPS    float64
		wantFrames int
		wantErr    bool
	}{
		{
			name:       "nb_frames present",
			in:         `{"streams":[{"width":1920,"height":1080,"r_frame_rate":"25/1","avg_frame_rate":"25/1","nb_frames":"1000"}],"format":{"duration":"40.000"}}`,
			wantW:      1920,
			wantFPS:    25,
			wantFrames: 1000,
		},
		{
			name:       "frames from duration",
			in:         `{"streams":[{"width":1280,"height":720,"r_frame_rate":"30000/1001","avg_frame_rate":"0/0"}],"format":{"duration":"10.010"}}`,
			wantW:      1280,
			wantFPS:    30000.0 / 1001.0,
			wantFrames: 300,
		},
		{name: "no stream", in: `{"streams":[],"format":{}}`, wantErr: true},
		{name: "garbage", in: `nope`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbe([]byte(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Width != tt.wantW || got.Frames != tt.wantFrames {
				t.Fatalf("unexpected info: %+v", got)
			}
			if d := got.FPS - tt.wantFPS; d > 1e-9 || d < -1e-9 {
				t.Fatalf("unexpected fps: %v", got.FPS)
			}
		})
	}
}

func TestCut_UsesIntervalVerbatim(t *testing.T) {
	r := &fakeRunner{}
	a := New(r, "", "")
	if err := a.Cut(context.Background(), "src.mp4", types.ClipInterval{Start: 12.5, End: 47.25}, "seg.mp4"); err != nil {
		t.Fatal(err)
	}
	got := strings.Join(r.calls[0].args, " ")
	if r.calls[0].tool != "ffmpeg" || !strings.Contains(got, "-ss 12.500 -i src.mp4 -t 34.750") {
		t.Fatalf("unexpected args: %s", got)
	}
}

func TestRenderVertical_Filter(t *testing.T) {
	r := &fakeRunner{}
	a := New(r, "/opt/ffmpeg", "")
	err := a.RenderVertical(context.Background(), ports.RenderSpec{
		Segment:     "seg.mp4",
		Audio:       "audio.wav",
		CropScript:  "/tmp/w:1/crop.cmd",
		InitialCrop: types.CropRect{X: 657, Y: 0, W: 606, H: 1080},
		OutW:        1080,
		OutH:        1920,
		Out:         "vertical.mp4",
	})
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Join(r.calls[0].args, " ")
	want := `sendcmd=f=/tmp/w\:1/crop.cmd,crop=w=606:h=1080:x=657:y=0,scale=1080:1920,setsar=1`
	if !strings.Contains(got, want) {
		t.Fatalf("expected filter %q in %s", want, got)
	}
	if !strings.Contains(got, "-map 1:a:0") {
		t.Fatalf("expected extracted audio to be muxed: %s", got)
	}
}

func TestBurnSubtitles_FontsDir(t *testing.T) {
	r := &fakeRunner{}
	a := New(r, "", "")
	a.FontsDir = "/fonts"
	if err := a.BurnSubtitles(context.Background(), "in.mp4", "subs.ass", "out.mp4"); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(r.calls[0].args, " "); !strings.Contains(got, "subtitles=filename=subs.ass:fontsdir=/fonts") {
		t.Fatalf("unexpected args: %s", got)
	}
}

func TestToolFailureIsRenderError(t *testing.T) {
	r := &fakeRunner{err: &types.ToolError{Tool: "ffmpeg", ExitCode: 1}}
	err := New(r, "", "").ExtractAudio(context.Background(), "in.mp4", "out.wav")
	if !errors.Is(err, types.ErrRender) {
		t.Fatalf("expected ErrRender, got %v", err)
	}
	var te *types.ToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected wrapped ToolError, got %v", err)
	}
}
