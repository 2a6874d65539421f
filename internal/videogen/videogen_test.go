package videogen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hmngo/vidcast/internal/config"
	"github.com/hmngo/vidcast/internal/gateway"
)

func newTestClient(serverURL string, opts Options) *Client {
	gw := gateway.NewClient(config.Config{APIKey: "test-key", BaseURL: serverURL})
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
	}
	if opts.PollTimeout == 0 {
		opts.PollTimeout = time.Second
	}
	return NewClient(gw, opts)
}

func TestStart(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Error("missing x-goog-api-key header")
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"name":"models/veo-3.0-generate-001/operations/op-42"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, Options{})
	name, err := c.Start(context.Background(), Request{Prompt: "a tea ceremony"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if name != "models/veo-3.0-generate-001/operations/op-42" {
		t.Errorf("name = %q", name)
	}
	if want := "/gemini/v1beta/models/veo-3.0-generate-001:predictLongRunning"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}

	body, _ := json.Marshal(gotBody)
	for _, fragment := range []string{
		`"prompt":"a tea ceremony"`,
		`"negativePrompt":"blurry, low quality"`,
		`"aspectRatio":"16:9"`,
		`"resolution":"720p"`,
		`"personGeneration":"allow_all"`,
	} {
		if !strings.Contains(string(body), fragment) {
			t.Errorf("request missing %s: %s", fragment, body)
		}
	}
}

func TestStartMissingName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, Options{})
	_, err := c.Start(context.Background(), Request{Prompt: "x"})
	if !errors.Is(err, gateway.ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestWaitDoneEventuallyCompletes(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			w.Write([]byte(`{"name":"op-1","done":false}`))
			return
		}
		w.Write([]byte(`{"name":"op-1","done":true,"response":{"generateVideoResponse":{"generatedSamples":[{"video":{"uri":"https://api.example.com/files/f-9:download"}}]}}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, Options{})
	op, err := c.WaitDone(context.Background(), "operations/op-1")
	if err != nil {
		t.Fatalf("WaitDone failed: %v", err)
	}
	if !op.Done {
		t.Error("operation should be done")
	}
	if got := polls.Load(); got != 3 {
		t.Errorf("polled %d times, want 3", got)
	}
}

func TestGenerateClipTimeoutSkipsDownload(t *testing.T) {
	var downloads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, ":download"):
			downloads.Add(1)
		case strings.Contains(r.URL.Path, ":predictLongRunning"):
			w.Write([]byte(`{"name":"operations/op-1"}`))
		default:
			w.Write([]byte(`{"name":"operations/op-1","done":false}`))
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL, Options{
		PollInterval: time.Millisecond,
		PollTimeout:  20 * time.Millisecond,
	})

	dest := filepath.Join(t.TempDir(), "clip.mp4")
	err := c.GenerateClip(context.Background(), Request{Prompt: "p"}, dest)
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if downloads.Load() != 0 {
		t.Error("timeout must not trigger a download")
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("no clip should exist after timeout")
	}
}

func TestWaitDoneOperationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"op-1","done":true,"error":{"code":13,"message":"internal failure"}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, Options{})
	_, err := c.WaitDone(context.Background(), "operations/op-1")
	if err == nil || !strings.Contains(err.Error(), "internal failure") {
		t.Errorf("expected operation error, got %v", err)
	}
	if errors.Is(err, ErrPollTimeout) {
		t.Error("operation error must stay distinct from timeout")
	}
}

func TestDownloadRebasesFileURI(t *testing.T) {
	payload := []byte("mp4 payload")
	var gotPath, gotQuery string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write(payload)
	}))
	defer server.Close()

	var op Operation
	raw := `{"name":"op-1","done":true,"response":{"generateVideoResponse":{"generatedSamples":[{"video":{"uri":"https://generativelanguage.googleapis.com/v1beta/files/abc123:download?alt=media"}}]}}}`
	if err := json.Unmarshal([]byte(raw), &op); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(t.TempDir(), "clip.mp4")
	c := newTestClient(server.URL, Options{})
	if err := c.Download(context.Background(), &op, dest); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	if want := "/gemini/download/v1beta/files/abc123:download"; gotPath != want {
		t.Errorf("download path = %q, want %q", gotPath, want)
	}
	if gotQuery != "alt=media" {
		t.Errorf("download query = %q, want alt=media", gotQuery)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("clip = %q", got)
	}
}

func TestDownloadShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no response", `{"name":"op-1","done":true}`},
		{"no samples", `{"name":"op-1","done":true,"response":{"generateVideoResponse":{"generatedSamples":[]}}}`},
		{"no uri", `{"name":"op-1","done":true,"response":{"generateVideoResponse":{"generatedSamples":[{"video":{}}]}}}`},
		{"uri without files segment", `{"name":"op-1","done":true,"response":{"generateVideoResponse":{"generatedSamples":[{"video":{"uri":"https://x.test/nope"}}]}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var op Operation
			if err := json.Unmarshal([]byte(tt.raw), &op); err != nil {
				t.Fatal(err)
			}

			c := newTestClient("http://unused.invalid", Options{})
			err := c.Download(context.Background(), &op, filepath.Join(t.TempDir(), "c.mp4"))
			if !errors.Is(err, gateway.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestGenerateClip(t *testing.T) {
	payload := []byte("final clip")
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/gemini/v1beta/models/veo-3.0-generate-001:predictLongRunning",
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"name":"operations/op-7"}`))
		})
	mux.HandleFunc("/gemini/v1beta/operations/op-7",
		func(w http.ResponseWriter, r *http.Request) {
			if polls.Add(1) < 2 {
				w.Write([]byte(`{"name":"operations/op-7","done":false}`))
				return
			}
			fmt.Fprintf(w, `{"name":"operations/op-7","done":true,"response":{"generateVideoResponse":{"generatedSamples":[{"video":{"uri":"https://up.example/files/xyz:download"}}]}}}`)
		})
	mux.HandleFunc("/gemini/download/v1beta/files/xyz:download",
		func(w http.ResponseWriter, r *http.Request) {
			w.Write(payload)
		})

	server := httptest.NewServer(mux)
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "clip.mp4")
	c := newTestClient(server.URL, Options{})
	if err := c.GenerateClip(context.Background(), Request{Prompt: "p"}, dest); err != nil {
		t.Fatalf("GenerateClip failed: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("clip = %q", got)
	}
}
