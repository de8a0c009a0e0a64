package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/speechcoach/internal/app"
)

// evaluator is the part of [app.App] batch mode needs.
type evaluator interface {
	Evaluate(ctx context.Context, req app.Request) (*app.Result, error)
}

// runBatch evaluates every file with at most parallel evaluations in
// flight. A failing file does not stop the others; the exit code is 1 if
// any file failed.
func runBatch(ctx context.Context, eval evaluator, files []string, parallel int, outDir string) int {
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			slog.Error("create output directory", "dir", outDir, "err", err)
			return 1
		}
	}

	var (
		stdoutMu sync.Mutex
		failedMu sync.Mutex
		failed   []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))

	for _, path := range files {
		g.Go(func() error {
			res, err := evaluateFile(gctx, eval, path)
			if err != nil {
				slog.Error("evaluation failed", "file", path, "err", err)
				failedMu.Lock()
				failed = append(failed, path)
				failedMu.Unlock()
				return nil
			}

			if outDir == "" {
				stdoutMu.Lock()
				defer stdoutMu.Unlock()
				return writeResult(os.Stdout, res)
			}
			return writeResultFile(filepath.Join(outDir, resultName(path)), res)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("batch aborted", "err", err)
		return 1
	}
	if len(failed) > 0 {
		slog.Error("batch finished with failures", "failed", len(failed), "total", len(files))
		return 1
	}
	slog.Info("batch finished", "total", len(files))
	return 0
}

// evaluateFile reads one request file and evaluates it.
func evaluateFile(ctx context.Context, eval evaluator, path string) (*app.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open request: %w", err)
	}
	defer f.Close()

	var req app.Request
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode request %q: %w", path, err)
	}
	return eval.Evaluate(ctx, req)
}

func writeResult(w io.Writer, res *app.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func writeResultFile(path string, res *app.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create result file: %w", err)
	}
	if err := writeResult(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// resultName maps "talks/maria.json" to "maria.result.json".
func resultName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".result.json"
}
