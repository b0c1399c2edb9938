package cropplan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/clipnetic/clipnetic/internal/types"
)

// SendCmdScript renders a plan as an ffmpeg sendcmd script for a filter
// instance named "crop". The first entry sets every field; later entries only
// carry the fields that changed, and unchanged frames are skipped. Times are
// relative to the first planned frame.
func SendCmdScript(plan []types.CropPlan, geo Geometry, fps float64) (string, error) {
	if len(plan) == 0 {
		return "", errors.New("cropplan: empty plan")
	}
	if fps <= 0 {
		return "", fmt.Errorf("cropplan: invalid fps %v", fps)
	}

	var b strings.Builder
	var prev types.CropRect
	for i, p := range plan {
		r := geo.Rect(p)
		var cmds []string
		if i == 0 || r.W != prev.W {
			cmds = append(cmds, fmt.Sprintf("crop w %d", r.W))
		}
		if i == 0 || r.H != prev.H {
			cmds = append(cmds, fmt.Sprintf("crop h %d", r.H))
		}
		if i == 0 || r.X != prev.X {
			cmds = append(cmds, fmt.Sprintf("crop x %d", r.X))
		}
		if i == 0 || r.Y != prev.Y {
			cmds = append(cmds, fmt.Sprintf("crop y %d", r.Y))
		}
		prev = r
		if len(cmds) == 0 {
			continue
		}
		t := float64(p.FrameIndex-plan[0].FrameIndex) / fps
		fmt.Fprintf(&b, "%.6f %s;\n", t, strings.Join(cmds, ", "))
	}
	return b.String(), nil
}
