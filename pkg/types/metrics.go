package types

// FillerWordEntry counts occurrences of a single filler word.
type FillerWordEntry struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// DeliveryMetrics is the numeric aggregate computed by the metrics
// collaborator from the transcript and audio. Field names in JSON form are
// the canonical metric identifiers referenced by script markers.
type DeliveryMetrics struct {
	DurationSeconds   float64 `json:"durationSeconds"`
	DurationFormatted string  `json:"durationFormatted"`
	TotalWords        int     `json:"totalWords"`
	WordsPerMinute    float64 `json:"wordsPerMinute"`

	FillerWords         []FillerWordEntry `json:"fillerWords"`
	FillerWordCount     int               `json:"fillerWordCount"`
	FillerWordFrequency float64           `json:"fillerWordFrequency"`

	PauseCount                  int     `json:"pauseCount"`
	TotalPauseDurationSeconds   float64 `json:"totalPauseDurationSeconds"`
	AveragePauseDurationSeconds float64 `json:"averagePauseDurationSeconds"`
	IntentionalPauseCount       int     `json:"intentionalPauseCount"`
	HesitationPauseCount        int     `json:"hesitationPauseCount"`

	// EnergyVariationCoefficient is the coefficient of variation of RMS
	// energy across speech windows; low values indicate a monotone delivery.
	EnergyVariationCoefficient float64 `json:"energyVariationCoefficient"`
	AverageEnergy              float64 `json:"averageEnergy"`
	PitchVariation             float64 `json:"pitchVariation"`
}
