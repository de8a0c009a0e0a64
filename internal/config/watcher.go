package config

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"
)

// fileState identifies one version of the config file on disk.
type fileState struct {
	modTime time.Time
	size    int64
	sum     [sha256.Size]byte
}

// sameStat reports whether info matches the stat part of s. A match means
// the content is assumed unchanged and is not re-read.
func (s fileState) sameStat(info fs.FileInfo) bool {
	return info.ModTime().Equal(s.modTime) && info.Size() == s.size
}

// Watcher polls a config file and calls onChange with the old config, the
// new config and their [Diff] whenever the file's content changes and still
// validates. Invalid edits are logged and ignored.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config, diff ConfigDiff)

	mu      sync.Mutex
	current *Config
	state   fileState

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is [DefaultReloadInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path and starts polling it in the
// background. The initial config must be valid.
func NewWatcher(path string, onChange func(old, new *Config, diff ConfigDiff), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultReloadInterval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, state, err := readConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.state = state

	go w.loop()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if _, err := w.Check(); err != nil {
				slog.Warn("config watcher: reload skipped", "path", w.path, "err", err)
			}
		}
	}
}

// Check looks at the file once and applies a changed, valid config. It
// reports whether the active config was replaced. A missing file is not an
// error; editors that save by rename remove it briefly.
func (w *Watcher) Check() (bool, error) {
	info, err := os.Stat(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("config watcher: file missing", "path", w.path)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("config: stat: %w", err)
	}

	w.mu.Lock()
	prev := w.state
	w.mu.Unlock()
	if prev.sameStat(info) {
		return false, nil
	}

	cfg, state, err := readConfigFile(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	if state.sum == w.state.sum {
		// Touched, not edited.
		w.state = state
		w.mu.Unlock()
		return false, nil
	}
	old := w.current
	w.current = cfg
	w.state = state
	w.mu.Unlock()

	diff := Diff(old, cfg)
	slog.Info("config watcher: configuration reloaded",
		"path", w.path,
		"log_level_changed", diff.LogLevelChanged,
		"generation_changed", diff.GenerationChanged,
		"redaction_changed", diff.RedactionChanged,
	)
	if len(diff.RestartRequired) > 0 {
		slog.Warn("config watcher: changes take effect after a restart", "sections", diff.RestartRequired)
	}

	// Outside the lock so the callback may call Current.
	if w.onChange != nil {
		w.onChange(old, cfg, diff)
	}
	return true, nil
}

// readConfigFile parses and validates the file at path and returns the
// config together with the file state it was read from.
func readConfigFile(path string) (*Config, fileState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fileState{}, fmt.Errorf("config: read: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fileState{}, fmt.Errorf("config: stat: %w", err)
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileState{}, err
	}
	return cfg, fileState{modTime: info.ModTime(), size: info.Size(), sum: sha256.Sum256(data)}, nil
}
