package types

import "fmt"

// WordSegment is one word of the transcript with its timing in seconds.
type WordSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"word"`
}

// ClipInterval is an accepted highlight window. Start and End always equal
// transcript word boundaries.
type ClipInterval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Index int     `json:"index"`
}

func (c ClipInterval) Duration() float64 { return c.End - c.Start }

func (c ClipInterval) String() string {
	return fmt.Sprintf("clip_%d[%.3f,%.3f)", c.Index, c.Start, c.End)
}

// BBox is a face box in source pixels: top-left corner plus size.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (b BBox) Center() (float64, float64) { return b.X + b.W/2, b.Y + b.H/2 }

func (b BBox) Area() float64 { return b.W * b.H }

type TrackFrame struct {
	FrameIndex int  `json:"frame_index"`
	BBox       BBox `json:"bbox"`
}

// Track is one face identity across a clip. Frames are ordered by FrameIndex.
type Track struct {
	TrackID int          `json:"track_id"`
	Frames  []TrackFrame `json:"frames"`
}

type SpeakingScore struct {
	TrackID    int     `json:"track_id"`
	FrameIndex int     `json:"frame_index"`
	Score      float64 `json:"score"`
}

// CropPlan is the crop for one output frame. CenterX/CenterY are in source
// pixels; Zoom is relative to the largest 9:16 window that fits the source.
type CropPlan struct {
	FrameIndex int     `json:"frame_index"`
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
	Zoom       float64 `json:"zoom"`
}

// ClipJob is the per-clip unit of work. WorkDir is owned by the job and removed
// when it finishes.
type ClipJob struct {
	SourcePath string
	Interval   ClipInterval
	WorkDir    string
}

type ClipStatus string

const (
	ClipDone    ClipStatus = "done"
	ClipAborted ClipStatus = "aborted"
)

type Manifest struct {
	SourceKey      string         `json:"source_key"`
	UploadedFileID string         `json:"uploaded_file_id,omitempty"`
	Clips          []ManifestClip `json:"clips"`
	Rejected       []Rejection    `json:"rejected,omitempty"`
}

type ManifestClip struct {
	Index     int        `json:"index"`
	StartSec  float64    `json:"start_sec"`
	EndSec    float64    `json:"end_sec"`
	Key       string     `json:"key,omitempty"`
	Text      string     `json:"text"`
	InfoScore float64    `json:"info_score"`
	HookScore float64    `json:"hook_score"`
	Status    ClipStatus `json:"status"`
	Stage     string     `json:"stage,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// CropRect is an integer crop window in source pixels.
type CropRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Notification is the webhook body sent when a background request finishes.
type Notification struct {
	UploadedFileID string         `json:"uploaded_file_id"`
	SourceKey      string         `json:"source_key"`
	Clips          []ManifestClip `json:"clips"`
	Error          *string        `json:"error"`
}
