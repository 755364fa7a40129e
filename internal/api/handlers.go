package api

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/kdimtricp/elbowtrack/internal/pose"
	"github.com/kdimtricp/elbowtrack/internal/storage"
	"github.com/kdimtricp/elbowtrack/internal/tracking"
)

type App struct {
	Service       *tracking.Service
	Storage       storage.Storage
	Templates     *template.Template
	MaxUploadSize int64
	Logger        *slog.Logger
}

func (app *App) logger() *slog.Logger {
	if app.Logger != nil {
		return app.Logger
	}
	return slog.Default()
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) HomeHandler(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Title   string
		Capture pose.CaptureSettings
		Panel   panelData
	}{
		Title:   "Elbow Tracking",
		Capture: pose.DefaultCaptureSettings(),
		Panel:   panelFor(tracking.DisplayState{}),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := app.Templates.ExecuteTemplate(w, "index.html", data); err != nil {
		app.logger().Error("api: rendering index", "error", err)
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
	}
}

type poseConfigResponse struct {
	Options pose.Options         `json:"options"`
	Capture pose.CaptureSettings `json:"capture"`
}

// PoseConfigHandler tells the client how to initialize its estimator and
// camera.
func (app *App) PoseConfigHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, poseConfigResponse{
		Options: pose.DefaultOptions(),
		Capture: pose.DefaultCaptureSettings(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("api: encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps tracking errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tracking.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, tracking.ErrTornDown):
		return http.StatusGone
	case errors.Is(err, tracking.ErrNoOverlay):
		return http.StatusNotFound
	case errors.Is(err, pose.ErrUnsupportedContentType):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

func (app *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		app.logger().Error("api: request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

type panelData struct {
	Readout string
	Message string
}

func panelFor(d tracking.DisplayState) panelData {
	return panelData{Readout: d.Readout(), Message: d.Message}
}
