package evidence

import (
	"testing"

	"github.com/MrWong99/speechcoach/pkg/types"
)

func observations() *types.VisualObservations {
	ratio := 0.8
	return &types.VisualObservations{
		GazeBreakdown:           types.GazeBreakdown{AudienceFacing: 65.5, NotesFacing: 30, Other: 4.5},
		TotalGestureCount:       12,
		GestureFrequency:        3.2,
		GesturePerSentenceRatio: &ratio,
		StageCrossingCount:      0,
		MovementClassification:  types.MovementModerate,
		FacialEnergyLowSignal:   true,
		VideoQualityGrade:       types.VideoQualityGood,
		GazeReliable:            true,
	}
}

func visual(data string) types.VisualFeedbackItem {
	return types.VisualFeedbackItem{Type: types.VisualObservationType, Summary: "s", ObservationData: data, Explanation: "e"}
}

func TestValidateObservationData(t *testing.T) {
	t.Parallel()
	obs := observations()

	tests := []struct {
		name string
		data string
		want bool
	}{
		{"exact nested value", "metric=gazeBreakdown.audienceFacing; value=65.5; source=visualObservations", true},
		{"within one percent", "metric=gazeBreakdown.audienceFacing; value=66; source=visualObservations", true},
		{"outside one percent", "metric=gazeBreakdown.audienceFacing; value=67; source=visualObservations", false},
		{"percent sign tolerated", "metric=gazeBreakdown.notesFacing; value=30%; source=visualObservations", true},
		{"integer metric", "metric=totalGestureCount; value=12; source=visualObservations", true},
		{"zero requires exact", "metric=stageCrossingCount; value=0.001; source=visualObservations", false},
		{"zero exact", "metric=stageCrossingCount; value=0; source=visualObservations", true},
		{"enum match", "metric=movementClassification; value=moderate_movement; source=visualObservations", true},
		{"enum mismatch", "metric=movementClassification; value=stationary; source=visualObservations", false},
		{"bool match", "metric=facialEnergyLowSignal; value=true; source=visualObservations", true},
		{"pointer metric", "metric=gesturePerSentenceRatio; value=0.8; source=visualObservations", true},
		{"wrong source", "metric=totalGestureCount; value=12; source=transcript", false},
		{"unknown metric", "metric=blinkRate; value=12; source=visualObservations", false},
		{"object path", "metric=gazeBreakdown; value=1; source=visualObservations", false},
		{"non numeric value", "metric=totalGestureCount; value=twelve; source=visualObservations", false},
		{"malformed", "totalGestureCount=12", false},
		{"extra spaces", "  metric = totalGestureCount ;value= 12 ; source = visualObservations ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ValidateObservationData(visual(tt.data), obs); got != tt.want {
				t.Errorf("ValidateObservationData(%q) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}

func TestValidateObservationData_NilObservations(t *testing.T) {
	t.Parallel()
	item := visual("metric=totalGestureCount; value=12; source=visualObservations")
	if ValidateObservationData(item, nil) {
		t.Error("expected false for nil observations")
	}
}

func TestLookupObservation_NullPointer(t *testing.T) {
	t.Parallel()
	obs := observations()
	obs.GesturePerSentenceRatio = nil
	if _, ok := LookupObservation(obs, "gesturePerSentenceRatio"); ok {
		t.Error("null metric should not resolve")
	}
}
