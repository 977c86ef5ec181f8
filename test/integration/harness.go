// Package integration provides end-to-end tests for the hlslocalizer API.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agleyzer/hlslocalizer/internal/localizer"
	"github.com/agleyzer/hlslocalizer/internal/registry"
	"github.com/agleyzer/hlslocalizer/internal/server"
)

// TestHarness runs an origin serving playlists from disk and the API in front of it.
type TestHarness struct {
	t       *testing.T
	origin  *httptest.Server
	api     *httptest.Server
	tempDir string
	logger  *slog.Logger
}

// NewTestHarness creates a new test harness.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	return &TestHarness{
		t:      t,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
}

// StartOrigin serves files, keyed by path relative to the origin root.
func (h *TestHarness) StartOrigin(files map[string]string) {
	h.t.Helper()

	h.tempDir = h.t.TempDir()
	for name, content := range files {
		path := filepath.Join(h.tempDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			h.t.Fatalf("failed to create origin directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			h.t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	h.origin = httptest.NewServer(http.FileServer(http.Dir(h.tempDir)))
	h.t.Cleanup(h.origin.Close)
	h.t.Logf("origin started at %s", h.origin.URL)
}

// OriginURL returns the absolute origin URL of name.
func (h *TestHarness) OriginURL(name string) string {
	return h.origin.URL + "/" + name
}

// StartAPI starts the API backed by an in-memory registry.
func (h *TestHarness) StartAPI(options localizer.Options) string {
	h.t.Helper()

	h.api = startAPI(h.t, registry.NewMemory(), nil, options, h.logger)
	return h.api.URL
}

func startAPI(t *testing.T, store registry.Store, status server.ClusterStatus, options localizer.Options, logger *slog.Logger) *httptest.Server {
	t.Helper()

	loc, err := localizer.New(nil, options, logger)
	if err != nil {
		t.Fatalf("failed to create localizer: %v", err)
	}

	srv := server.New(store, loc, status, 0, logger)
	api := httptest.NewServer(srv.Router())
	t.Cleanup(api.Close)
	return api
}

// Response is a buffered API response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the response body into v.
func (r Response) Decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("failed to decode response %q: %v", r.Body, err)
	}
}

// Do sends a request with an optional JSON body.
func Do(t *testing.T, method, url string, body any) Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}

	return Response{Status: resp.StatusCode, Header: resp.Header, Body: data}
}

// findAvailablePort finds an available TCP port.
func findAvailablePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

// ParsedPlaylist is a localized media playlist reduced to what the tests check.
type ParsedPlaylist struct {
	Version        int
	TargetDuration int
	Segments       []PlaylistSegment
	KeyURIs        []string
	MapURI         string
	HasEndList     bool
}

// PlaylistSegment represents a segment in a playlist.
type PlaylistSegment struct {
	Duration float64
	URL      string
}

// ParsePlaylist parses a media playlist into a structured format.
func ParsePlaylist(content string) *ParsedPlaylist {
	playlist := &ParsedPlaylist{}

	var current *PlaylistSegment
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-VERSION:"):
			fmt.Sscanf(line, "#EXT-X-VERSION:%d", &playlist.Version)

		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			fmt.Sscanf(line, "#EXT-X-TARGETDURATION:%d", &playlist.TargetDuration)

		case strings.HasPrefix(line, "#EXT-X-KEY:"):
			playlist.KeyURIs = append(playlist.KeyURIs, quotedURI(line))

		case strings.HasPrefix(line, "#EXT-X-MAP:"):
			playlist.MapURI = quotedURI(line)

		case line == "#EXT-X-ENDLIST":
			playlist.HasEndList = true

		case strings.HasPrefix(line, "#EXTINF:"):
			current = &PlaylistSegment{}
			fmt.Sscanf(line, "#EXTINF:%f,", &current.Duration)

		case !strings.HasPrefix(line, "#"):
			if current != nil {
				current.URL = line
				playlist.Segments = append(playlist.Segments, *current)
				current = nil
			}
		}
	}

	return playlist
}

func quotedURI(line string) string {
	_, rest, ok := strings.Cut(line, `URI="`)
	if !ok {
		return ""
	}
	uri, _, _ := strings.Cut(rest, `"`)
	return uri
}

// WaitForCondition polls until a condition is met or timeout occurs.
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, description string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for condition: %s", description)
		}
		<-ticker.C
	}
}
