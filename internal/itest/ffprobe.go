//go:build integration

package itest

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type probeInfo struct {
	width    int
	height   int
	duration float64
}

func probeVideo(mp4Path string) (probeInfo, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "default=noprint_wrappers=1",
		mp4Path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return probeInfo{}, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}

	var info probeInfo
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch k {
		case "width":
			info.width, err = strconv.Atoi(v)
		case "height":
			info.height, err = strconv.Atoi(v)
		case "duration":
			info.duration, err = strconv.ParseFloat(v, 64)
		}
		if err != nil {
			return probeInfo{}, fmt.Errorf("parse %s %q: %w", k, v, err)
		}
	}
	return info, nil
}
