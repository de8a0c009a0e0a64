package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Log level,
// generation and redaction settings can be applied to a running server;
// every other change is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// GenerationChanged is set when temperature, max tokens or circuit
	// breaker tuning differ. Engines created afterwards use the new values;
	// the breakers themselves keep their state until restart.
	GenerationChanged bool

	// RedactionChanged is set when phonetic matching or the extra non-name
	// list differ.
	RedactionChanged bool

	// RestartRequired names the top-level sections whose changes only take
	// effect after a restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.GenerationChanged && !d.RedactionChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}

	if old.Generation.EffectiveTemperature() != new.Generation.EffectiveTemperature() ||
		old.Generation.EffectiveMaxTokens() != new.Generation.EffectiveMaxTokens() ||
		old.Generation.CircuitBreaker != new.Generation.CircuitBreaker {
		d.GenerationChanged = true
	}

	if old.Redaction.PhoneticSpeakerMatch != new.Redaction.PhoneticSpeakerMatch ||
		!slices.Equal(old.Redaction.ExtraNonNames, new.Redaction.ExtraNonNames) {
		d.RedactionChanged = true
	}

	if old.LogFormat != new.LogFormat {
		d.RestartRequired = append(d.RestartRequired, "log_format")
	}
	if !reflect.DeepEqual(old.Server, new.Server) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Telemetry != new.Telemetry {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}
	if old.Observability != new.Observability {
		d.RestartRequired = append(d.RestartRequired, "observability")
	}

	return d
}
