package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kdimtricp/elbowtrack/internal/database"
	"github.com/kdimtricp/elbowtrack/internal/pose"
	"github.com/kdimtricp/elbowtrack/internal/storage"
	"github.com/kdimtricp/elbowtrack/internal/tracking"
	"github.com/kdimtricp/elbowtrack/web"
)

type TestServer struct {
	Server  *httptest.Server
	DB      *database.DB
	Service *tracking.Service
	Storage *storage.LocalStorage
}

func setupTestServer(t *testing.T) *TestServer {
	t.Helper()
	tmpDir := t.TempDir()

	db, err := database.NewDB(database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(tmpDir, "api_test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	localStorage, err := storage.NewLocalStorage(filepath.Join(tmpDir, "data"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	templates, err := web.Templates()
	if err != nil {
		t.Fatalf("Failed to parse templates: %v", err)
	}

	service := tracking.NewService(database.NewSessionRepository(db), pose.DefaultOptions())
	app := &App{
		Service:       service,
		Storage:       localStorage,
		Templates:     templates,
		MaxUploadSize: 1 << 20,
	}

	server := httptest.NewServer(NewRouter(app))
	t.Cleanup(func() {
		server.Close()
		service.Shutdown(context.Background())
		db.Close()
	})

	return &TestServer{Server: server, DB: db, Service: service, Storage: localStorage}
}

// armFrame builds a frame whose left arm forms a right angle at the elbow,
// or a straight arm when straight is set.
func armFrame(straight bool) *pose.Result {
	lms := make([]pose.Landmark, 33)
	lms[pose.LeftShoulder] = pose.Landmark{X: 0.2, Y: 0.5}
	lms[pose.LeftElbow] = pose.Landmark{X: 0.5, Y: 0.5}
	if straight {
		lms[pose.LeftWrist] = pose.Landmark{X: 0.8, Y: 0.5}
	} else {
		lms[pose.LeftWrist] = pose.Landmark{X: 0.5, Y: 0.8}
	}
	return &pose.Result{
		Image:         pose.Image{Width: 640, Height: 480},
		PoseLandmarks: lms,
	}
}

func startSession(t *testing.T, baseURL string) tracking.Snapshot {
	t.Helper()

	resp, err := http.Post(baseURL+"/api/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	var snap tracking.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode session: %v", err)
	}
	return snap
}

func postFrame(t *testing.T, baseURL, sessionID, contentType string, frame *pose.Result) *http.Response {
	t.Helper()

	body, err := pose.EncodeResult(contentType, frame)
	if err != nil {
		t.Fatalf("Failed to encode frame: %v", err)
	}

	url := fmt.Sprintf("%s/api/sessions/%s/frames", baseURL, sessionID)
	resp, err := http.Post(url, contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to post frame: %v", err)
	}
	return resp
}

func decodeFrame(t *testing.T, resp *http.Response) frameResponse {
	t.Helper()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, body)
	}

	var fr frameResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		t.Fatalf("Failed to decode frame response: %v", err)
	}
	return fr
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	return strings.TrimSpace(string(body))
}
