package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clipnetic/clipnetic/internal/domain/cropplan"
	"github.com/clipnetic/clipnetic/internal/domain/moments"
	"github.com/clipnetic/clipnetic/internal/ports/adapters/asd"
	"github.com/clipnetic/clipnetic/internal/types"
)

type selectOutput struct {
	Intervals  []types.ClipInterval `json:"intervals"`
	Rejected   []types.Rejection    `json:"rejected"`
	ParseError string               `json:"parse_error,omitempty"`
}

func newSelectCmd(a *app) *cobra.Command {
	var transcriptPath, candidatesPath string
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Validate proposer output against a transcript offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := os.ReadFile(transcriptPath)
			if err != nil {
				return err
			}
			var words []types.WordSegment
			if err := json.Unmarshal(b, &words); err != nil {
				return fmt.Errorf("decode transcript: %w", err)
			}
			raw, err := os.ReadFile(candidatesPath)
			if err != nil {
				return err
			}

			res := moments.Select(words, string(raw), a.cfg.Selector.Moments())
			out := selectOutput{Intervals: res.Intervals, Rejected: res.Rejected}
			if out.Intervals == nil {
				out.Intervals = []types.ClipInterval{}
			}
			if out.Rejected == nil {
				out.Rejected = []types.Rejection{}
			}
			if res.ParseErr != nil {
				out.ParseError = res.ParseErr.Error()
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "JSON array of {start, end, word}")
	cmd.Flags().StringVar(&candidatesPath, "candidates", "", "Raw proposer output")
	_ = cmd.MarkFlagRequired("transcript")
	_ = cmd.MarkFlagRequired("candidates")
	return cmd
}

func newPlanCmd(a *app) *cobra.Command {
	var (
		tracksPath, scoresPath string
		frames, width, height  int
		fps                    float64
		sendcmd                bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the crop plan for tracker artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if frames <= 0 || width <= 0 || height <= 0 {
				return errors.New("--frames, --width and --height must be > 0")
			}
			tr, err := asd.ReadArtifacts(tracksPath, scoresPath)
			if err != nil {
				return err
			}
			cfg := a.cfg.Crop.Planner()
			plan := cropplan.Plan(cropplan.Input{
				Tracks:     tr.Tracks,
				Scores:     tr.Scores,
				FirstFrame: 0,
				LastFrame:  frames - 1,
				Width:      width,
				Height:     height,
			}, cfg)

			w := cmd.OutOrStdout()
			if sendcmd {
				geo := cropplan.NewGeometry(width, height, cfg.TargetW, cfg.TargetH)
				script, err := cropplan.SendCmdScript(plan, geo, fps)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(w, script)
				return err
			}
			enc := json.NewEncoder(w)
			for _, p := range plan {
				if err := enc.Encode(p); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tracksPath, "tracks", "", "tracks.json from the tracker")
	cmd.Flags().StringVar(&scoresPath, "scores", "", "scores.json from the tracker")
	cmd.Flags().IntVar(&frames, "frames", 0, "Number of frames in the clip")
	cmd.Flags().IntVar(&width, "width", 0, "Source width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "Source height in pixels")
	cmd.Flags().Float64Var(&fps, "fps", 30, "Frame rate, used with --sendcmd")
	cmd.Flags().BoolVar(&sendcmd, "sendcmd", false, "Print an ffmpeg sendcmd script instead of JSON lines")
	_ = cmd.MarkFlagRequired("tracks")
	_ = cmd.MarkFlagRequired("scores")
	return cmd
}
