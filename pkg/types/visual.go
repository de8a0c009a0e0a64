package types

// VideoQualityGrade grades the reliability of a recording's video stream.
type VideoQualityGrade string

const (
	VideoQualityGood     VideoQualityGrade = "good"
	VideoQualityDegraded VideoQualityGrade = "degraded"
	VideoQualityPoor     VideoQualityGrade = "poor"
)

// MovementClassification buckets body movement across the speech.
type MovementClassification string

const (
	MovementStationary MovementClassification = "stationary"
	MovementModerate   MovementClassification = "moderate_movement"
	MovementHigh       MovementClassification = "high_movement"
)

// GazeBreakdown gives the share of analysed frames (percent, 0-100) spent
// looking in each direction.
type GazeBreakdown struct {
	AudienceFacing float64 `json:"audienceFacing"`
	NotesFacing    float64 `json:"notesFacing"`
	Other          float64 `json:"other"`
}

// VisualObservations is the aggregate produced by the video collaborator.
// It never carries per-frame data. Each metric group has its own reliability
// flag; unreliable groups must not be surfaced to the speaker.
type VisualObservations struct {
	GazeBreakdown        GazeBreakdown `json:"gazeBreakdown"`
	FaceNotDetectedCount int           `json:"faceNotDetectedCount"`

	TotalGestureCount       int      `json:"totalGestureCount"`
	GestureFrequency        float64  `json:"gestureFrequency"`
	GesturePerSentenceRatio *float64 `json:"gesturePerSentenceRatio"`

	MeanBodyStabilityScore float64                `json:"meanBodyStabilityScore"`
	StageCrossingCount     int                    `json:"stageCrossingCount"`
	MovementClassification MovementClassification `json:"movementClassification"`

	MeanFacialEnergyScore float64 `json:"meanFacialEnergyScore"`
	FacialEnergyVariation float64 `json:"facialEnergyVariation"`
	FacialEnergyLowSignal bool    `json:"facialEnergyLowSignal"`

	FramesAnalyzed int `json:"framesAnalyzed"`
	FramesReceived int `json:"framesReceived"`
	FramesErrored  int `json:"framesErrored"`

	VideoQualityGrade   VideoQualityGrade `json:"videoQualityGrade"`
	VideoQualityWarning bool              `json:"videoQualityWarning"`

	GazeReliable         bool `json:"gazeReliable"`
	GestureReliable      bool `json:"gestureReliable"`
	StabilityReliable    bool `json:"stabilityReliable"`
	FacialEnergyReliable bool `json:"facialEnergyReliable"`
}

// AnyReliable reports whether at least one metric group is reliable.
func (v *VisualObservations) AnyReliable() bool {
	return v.GazeReliable || v.GestureReliable || v.StabilityReliable || v.FacialEnergyReliable
}

// Usable reports whether v may be shown to the completion service at all:
// non-nil, not graded poor, and with at least one reliable metric group.
func (v *VisualObservations) Usable() bool {
	return v != nil && v.VideoQualityGrade != VideoQualityPoor && v.AnyReliable()
}
