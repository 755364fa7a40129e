package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kdimtricp/elbowtrack/internal/capture"
	"github.com/kdimtricp/elbowtrack/internal/storage"
	"github.com/kdimtricp/elbowtrack/internal/tracking"
)

type recordingResponse struct {
	Recording string `json:"recording"`
	*tracking.ReplayResult
}

// ReplayRecordingHandler stores an uploaded JSON Lines recording of pose
// results and replays it through a new session.
func (app *App) ReplayRecordingHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "recording too large or malformed form")
		return
	}

	file, header, err := r.FormFile("recording")
	if err != nil {
		writeError(w, http.StatusBadRequest, "recording file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".jsonl" && ext != ".ndjson" {
		writeError(w, http.StatusBadRequest, "only .jsonl recordings are allowed")
		return
	}

	filename, err := app.Storage.SaveFile(file, storage.FileInfo{
		Filename:    header.Filename,
		ContentType: "application/x-ndjson",
		Size:        header.Size,
	})
	if err != nil {
		app.fail(w, r, fmt.Errorf("saving recording: %w", err))
		return
	}

	stored, err := app.Storage.OpenFile(filename)
	if err != nil {
		app.fail(w, r, fmt.Errorf("opening recording: %w", err))
		return
	}
	defer stored.Close()

	result, err := app.Service.Replay(r.Context(), capture.NewRecordingSource(stored), capture.Options{
		Logger: app.logger(),
	})
	if errors.Is(err, tracking.ErrReplay) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		app.fail(w, r, err)
		return
	}

	app.logger().Info("api: recording replayed",
		"recording", filename,
		"session_id", result.Session.ID,
		"frames", result.Frames)

	writeJSON(w, http.StatusCreated, recordingResponse{Recording: filename, ReplayResult: result})
}
