package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipnetic/clipnetic/internal/types"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	var out, errOut bytes.Buffer
	root := NewRoot()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestSelectCmd(t *testing.T) {
	words := make([]types.WordSegment, 100)
	for i := range words {
		words[i] = types.WordSegment{Start: float64(i), End: float64(i + 1), Text: "w"}
	}
	b, err := json.Marshal(words)
	require.NoError(t, err)
	transcript := writeTemp(t, "words.json", string(b))
	candidates := writeTemp(t, "cands.txt", "```json\n[{\"start\":0,\"end\":40},{\"start\":50,\"end\":55}]\n```")

	out, err := execute(t, "select", "--transcript", transcript, "--candidates", candidates)
	require.NoError(t, err)

	var got selectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Intervals, 1)
	assert.Equal(t, 40.0, got.Intervals[0].End)
	require.Len(t, got.Rejected, 1)
	assert.Equal(t, 1, got.Rejected[0].Position)
	assert.Empty(t, got.ParseError)
}

func TestSelectCmd_ParseError(t *testing.T) {
	transcript := writeTemp(t, "words.json", `[{"start":0,"end":1,"word":"hi"}]`)
	candidates := writeTemp(t, "cands.txt", "I could not find any highlights.")

	out, err := execute(t, "select", "--transcript", transcript, "--candidates", candidates)
	require.NoError(t, err)

	var got selectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Empty(t, got.Intervals)
	assert.NotEmpty(t, got.ParseError)
}

func TestSelectCmd_RequiresFlags(t *testing.T) {
	_, err := execute(t, "select")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

const (
	tracksJSON = `[{"track_id":1,"frames":[{"frame_index":0,"bbox":{"x":100,"y":200,"w":150,"h":150}},{"frame_index":9,"bbox":{"x":120,"y":200,"w":150,"h":150}}]}]`
	scoresJSON = `[{"track_id":1,"frame_index":0,"score":2.0}]`
)

func TestPlanCmd_JSONLines(t *testing.T) {
	tracks := writeTemp(t, "tracks.json", tracksJSON)
	scores := writeTemp(t, "scores.json", scoresJSON)

	out, err := execute(t, "plan", "--tracks", tracks, "--scores", scores, "--frames", "10", "--width", "1920", "--height", "1080")
	require.NoError(t, err)

	sc := bufio.NewScanner(strings.NewReader(out))
	n := 0
	for sc.Scan() {
		var p types.CropPlan
		require.NoError(t, json.Unmarshal(sc.Bytes(), &p))
		assert.Equal(t, n, p.FrameIndex)
		assert.GreaterOrEqual(t, p.Zoom, 1.0)
		n++
	}
	assert.Equal(t, 10, n)
}

func TestPlanCmd_SendCmd(t *testing.T) {
	tracks := writeTemp(t, "tracks.json", tracksJSON)
	scores := writeTemp(t, "scores.json", scoresJSON)

	out, err := execute(t, "plan", "--tracks", tracks, "--scores", scores, "--frames", "10", "--width", "1920", "--height", "1080", "--sendcmd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "0.000000 crop w "), out)
}

func TestPlanCmd_BadSize(t *testing.T) {
	tracks := writeTemp(t, "tracks.json", tracksJSON)
	scores := writeTemp(t, "scores.json", scoresJSON)

	_, err := execute(t, "plan", "--tracks", tracks, "--scores", scores, "--frames", "0", "--width", "1920", "--height", "1080")
	require.Error(t, err)
}

func TestProcessCmd_ValidatesConfig(t *testing.T) {
	t.Setenv("CLIPNETIC_STORAGE_BUCKET", "media")
	t.Setenv("CLIPNETIC_TOOLS_WHISPER_MODEL", "")

	_, err := execute(t, "process", "uploads/talk.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config:")
}

func TestProcessCmd_Args(t *testing.T) {
	_, err := execute(t, "process")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s), received 0")
}

func TestServeCmd_RequiresAuth(t *testing.T) {
	t.Setenv("CLIPNETIC_STORAGE_BACKEND", "local")
	t.Setenv("CLIPNETIC_TOOLS_WHISPER_MODEL", "/models/ggml.bin")
	t.Setenv("CLIPNETIC_TOOLS_TRACKER_BIN", "asd-track")
	t.Setenv("CLIPNETIC_LLM_API_KEY", "sk")
	t.Setenv("OPENROUTER_BASE_URL", "")
	t.Setenv("CLIPNETIC_AUTH_TOKEN", "")
	t.Setenv("PROCESS_VIDEO_ENDPOINT_AUTH", "")
	t.Setenv("CLIPNETIC_AUTH_JWT_SECRET", "")

	_, err := execute(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.token or auth.jwt_secret")
}
