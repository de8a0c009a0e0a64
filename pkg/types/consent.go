package types

import "time"

// ConsentRecord captures the speaker's consent to share an evaluation.
type ConsentRecord struct {
	SpeakerName      string    `json:"speakerName"`
	ConsentConfirmed bool      `json:"consentConfirmed"`
	ConsentTimestamp time.Time `json:"consentTimestamp"`
}

// RedactionInput is consumed once by the redactor and then discarded.
type RedactionInput struct {
	Script     string
	Evaluation *StructuredEvaluation
	Consent    ConsentRecord
}

// RedactionOutput holds the redacted script and public evaluation.
type RedactionOutput struct {
	ScriptRedacted   string                      `json:"scriptRedacted"`
	EvaluationPublic *StructuredEvaluationPublic `json:"evaluationPublic"`
}
