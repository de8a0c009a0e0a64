package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found. Settings
// that are legal but probably unintended are logged as warnings.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.LogFormat != "" && !cfg.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("log_format %q is invalid; valid values: text, json", cfg.LogFormat))
	}

	// Providers
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	if cfg.Providers.LLM.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("providers.llm.requests_per_minute must not be negative"))
	}

	seen := map[string]string{}
	if cfg.Providers.LLM.Name != "" {
		seen[backendKey(cfg.Providers.LLM)] = "providers.llm"
	}
	for i, fb := range cfg.Providers.LLMFallbacks {
		prefix := fmt.Sprintf("providers.llm_fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName("llm", fb.Name)
		if fb.RequestsPerMinute < 0 {
			errs = append(errs, fmt.Errorf("%s.requests_per_minute must not be negative", prefix))
		}
		key := backendKey(fb)
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("%s duplicates %s (%s)", prefix, prev, key))
		}
		seen[key] = prefix
	}

	// Generation
	if t := cfg.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("generation.temperature %.2f is out of range [0, 2]", *t))
	}
	if cfg.Generation.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("generation.max_tokens %d must not be negative", cfg.Generation.MaxTokens))
	}
	cb := cfg.Generation.CircuitBreaker
	if cb.MaxFailures < 0 || cb.ResetTimeoutSeconds < 0 || cb.HalfOpenMax < 0 {
		errs = append(errs, errors.New("generation.circuit_breaker values must not be negative"))
	}

	// Telemetry
	if cfg.Telemetry.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("telemetry.embedding_dimensions %d must not be negative", cfg.Telemetry.EmbeddingDimensions))
	}
	if cfg.Telemetry.Enabled && cfg.Providers.Embeddings.Name == "" {
		slog.Warn("telemetry.enabled is set but providers.embeddings is not configured; consistency telemetry will only log warnings")
	}
	if cfg.Telemetry.PostgresDSN != "" && cfg.Telemetry.EmbeddingDimensions == 0 {
		slog.Warn("telemetry.postgres_dsn is set but telemetry.embedding_dimensions is not; defaulting to 1536")
	}
	if cfg.Telemetry.PostgresDSN != "" && !cfg.Telemetry.Enabled {
		slog.Warn("telemetry.postgres_dsn is set but telemetry is disabled; the store will not be used")
	}

	// Server
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	return errors.Join(errs...)
}

// backendKey identifies a completion backend for duplicate detection.
func backendKey(e ProviderEntry) string {
	return e.Name + "/" + e.Model
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
