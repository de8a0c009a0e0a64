package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/speechcoach/pkg/provider/embeddings/ollama"
)

// embedServer answers /api/embed with vec and records the requested model.
func embedServer(t *testing.T, wantModel string, vec []float32, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != wantModel {
			t.Errorf("model = %q, want %q", req.Model, wantModel)
		}
		if status != http.StatusOK {
			http.Error(w, "boom", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": wantModel, "embeddings": [][]float32{vec}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbed_ReturnsVectorAndLearnsDimensions(t *testing.T) {
	t.Parallel()
	srv := embedServer(t, "custom-embed", []float32{0.1, 0.2, 0.3}, http.StatusOK)

	p, err := ollama.New(srv.URL+"/", "custom-embed")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d := p.Dimensions(); d != 0 {
		t.Errorf("Dimensions before Embed = %d, want 0", d)
	}
	vec, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("len(vec) = %d, want 3", len(vec))
	}
	if d := p.Dimensions(); d != 3 {
		t.Errorf("Dimensions after Embed = %d, want 3", d)
	}
}

func TestEmbed_Non200(t *testing.T) {
	t.Parallel()
	srv := embedServer(t, "nomic-embed-text", nil, http.StatusInternalServerError)
	p, _ := ollama.New(srv.URL, "nomic-embed-text")
	if _, err := p.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	if _, err := ollama.New("", ""); err == nil {
		t.Error("expected error for empty model")
	}
	p, err := ollama.New("", "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Dimensions() != 768 {
		t.Errorf("Dimensions = %d, want 768", p.Dimensions())
	}
	p, _ = ollama.New("", "x", ollama.WithDimensions(42))
	if p.Dimensions() != 42 {
		t.Errorf("Dimensions = %d, want 42", p.Dimensions())
	}
}
