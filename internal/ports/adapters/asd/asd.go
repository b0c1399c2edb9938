package asd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/clipnetic/clipnetic/internal/ports"
	"github.com/clipnetic/clipnetic/internal/types"
)

const (
	ArtifactDir = "asd"
	TracksFile  = "tracks.json"
	ScoresFile  = "scores.json"
)

// Adapter runs an external face tracking / active speaker detection command
// and reads the two artifacts it leaves in <workdir>/asd. Arguments may use
// the {video}, {audio}, {workdir} and {out} placeholders.
type Adapter struct {
	run  ports.Runner
	bin  string
	args []string
}

func New(run ports.Runner, bin string, args []string) *Adapter {
	return &Adapter{run: run, bin: bin, args: args}
}

var _ ports.Tracker = (*Adapter)(nil)

func (a *Adapter) Track(ctx context.Context, req ports.TrackRequest) (ports.TrackResult, error) {
	out := filepath.Join(req.WorkDir, ArtifactDir)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return ports.TrackResult{}, fmt.Errorf("create tracker dir: %w", err)
	}

	r := strings.NewReplacer(
		"{video}", req.Video,
		"{audio}", req.Audio,
		"{workdir}", req.WorkDir,
		"{out}", out,
	)
	args := make([]string, len(a.args))
	for i, s := range a.args {
		args[i] = r.Replace(s)
	}

	// A failed run that left nothing behind is reported as a missing artifact.
	_, runErr := a.run.Run(ctx, a.bin, args, req.WorkDir)
	if ctx.Err() != nil {
		return ports.TrackResult{}, fmt.Errorf("tracker: %w", ctx.Err())
	}

	res, err := readArtifacts(filepath.Join(out, TracksFile), filepath.Join(out, ScoresFile), runErr)
	if err != nil {
		return ports.TrackResult{}, err
	}
	// Artifacts left by a failed run are not trusted.
	if runErr != nil {
		return ports.TrackResult{}, fmt.Errorf("tracker failed: %w", runErr)
	}
	return res, nil
}

// ReadArtifacts loads a tracks file and a scores file in the tracker's
// layout, e.g. to replay a plan offline.
func ReadArtifacts(tracksPath, scoresPath string) (ports.TrackResult, error) {
	return readArtifacts(tracksPath, scoresPath, nil)
}

func readArtifacts(tracksPath, scoresPath string, runErr error) (ports.TrackResult, error) {
	var res ports.TrackResult
	if err := readArtifact(tracksPath, &res.Tracks, runErr); err != nil {
		return ports.TrackResult{}, err
	}
	if err := readArtifact(scoresPath, &res.Scores, runErr); err != nil {
		return ports.TrackResult{}, err
	}
	return res, nil
}

func readArtifact(path string, dst any, runErr error) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return &types.MissingArtifactError{Path: path, Cause: errors.Join(runErr, err)}
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return &types.MissingArtifactError{Path: path, Cause: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
