package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kdimtricp/elbowtrack/internal/overlay"
	"github.com/kdimtricp/elbowtrack/internal/pose"
	"github.com/kdimtricp/elbowtrack/internal/storage"
	"github.com/kdimtricp/elbowtrack/internal/tracking"
)

func (app *App) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	tracker, err := app.Service.StartSession(r.Context())
	if err != nil {
		app.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tracker.Snapshot())
}

func (app *App) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := app.Service.ListSessions(r.Context())
	if err != nil {
		app.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (app *App) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if tracker, live := app.Service.GetSession(id); live {
		writeJSON(w, http.StatusOK, tracker.Snapshot())
		return
	}

	record, err := app.Service.Describe(r.Context(), id)
	if err != nil {
		app.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (app *App) EndSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := app.Service.EndSession(r.Context(), id); err != nil {
		app.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type frameResponse struct {
	SessionID string                `json:"session_id"`
	Display   tracking.DisplayState `json:"display"`
	Readout   string                `json:"readout"`
	Commands  []overlay.Command     `json:"commands"`
	Skipped   tracking.SkipReason   `json:"skipped,omitempty"`
}

// FrameHandler is the per-frame callback: the body is one estimator result.
func (app *App) FrameHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, app.MaxUploadSize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}

	result, err := pose.DecodeResult(r.Header.Get("Content-Type"), body)
	if errors.Is(err, pose.ErrUnsupportedContentType) {
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := app.Service.ProcessFrame(r.Context(), id, result)
	if err != nil {
		app.fail(w, r, err)
		return
	}

	commands := out.Commands
	if commands == nil {
		commands = []overlay.Command{}
	}
	writeJSON(w, http.StatusOK, frameResponse{
		SessionID: id,
		Display:   out.State,
		Readout:   out.State.Readout(),
		Commands:  commands,
		Skipped:   out.Skipped,
	})
}

func (app *App) liveTracker(w http.ResponseWriter, r *http.Request) (*tracking.Tracker, bool) {
	id := chi.URLParam(r, "id")
	if tracker, live := app.Service.GetSession(id); live {
		return tracker, true
	}
	// distinguishes unknown from ended sessions
	if _, err := app.Service.Describe(r.Context(), id); err != nil {
		app.fail(w, r, err)
		return nil, false
	}
	app.fail(w, r, tracking.ErrTornDown)
	return nil, false
}

func (app *App) OverlayHandler(w http.ResponseWriter, r *http.Request) {
	tracker, ok := app.liveTracker(w, r)
	if !ok {
		return
	}

	data, err := tracker.RenderOverlay()
	if err != nil {
		app.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func (app *App) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	tracker, ok := app.liveTracker(w, r)
	if !ok {
		return
	}

	data, err := tracker.RenderOverlay()
	if err != nil {
		app.fail(w, r, err)
		return
	}

	filename, err := app.Storage.SaveFile(bytes.NewReader(data), storage.FileInfo{
		Filename:    fmt.Sprintf("%s.png", tracker.ID()),
		ContentType: "image/png",
		Size:        int64(len(data)),
	})
	if err != nil {
		app.fail(w, r, fmt.Errorf("saving snapshot: %w", err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"file": filename})
}

func (app *App) PanelHandler(w http.ResponseWriter, r *http.Request) {
	tracker, ok := app.liveTracker(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := app.Templates.ExecuteTemplate(w, "panel.html", panelFor(tracker.Display())); err != nil {
		app.logger().Error("api: rendering panel", "error", err)
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
	}
}

// EventsHandler streams display updates as server-sent events until the
// client leaves or the session is torn down.
func (app *App) EventsHandler(w http.ResponseWriter, r *http.Request) {
	tracker, ok := app.liveTracker(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates, cancel := tracker.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	display := tracker.Display()
	writeEvent(w, "display", tracking.Update{
		SessionID: tracker.ID(),
		Display:   display,
		Readout:   display.Readout(),
	})
	flusher.Flush()

	clientGone := r.Context().Done()
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				fmt.Fprint(w, "event: end\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			writeEvent(w, "display", update)
			flusher.Flush()

		case <-clientGone:
			return
		}
	}
}

func writeEvent(w io.Writer, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
