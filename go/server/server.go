// Package server exposes the note pipelines over HTTP: task submission,
// snapshots, results, live event streams, and cancellation.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/store"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/task"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// ownerHeader carries the identity of the submitting user. Upstream
// authentication is expected to have validated it.
const ownerHeader = "X-User-ID"

// maxSnapshotIntermediate bounds the serialized size of one intermediate
// returned inline on a task snapshot. Larger artifacts are elided; the
// event stream still carries them in full.
const maxSnapshotIntermediate = 64 << 10

// Server routes HTTP requests onto the task registry and pipelines.
type Server struct {
	Registry *task.Registry
	Runner   *task.Runner
	Store    store.Store

	// ProcessFuncs per task kind.
	SmartNote    task.ProcessFunc
	MultiSummary task.ProcessFunc

	// MaxImageBytes bounds uploaded note images.
	MaxImageBytes int64
}

// Routes builds the server's HTTP handler.
func (s *Server) Routes() http.Handler {
	var r = chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(countRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/notes/smart-note", s.submitSmartNote)
		r.Post("/notes/multi-summary", s.submitMultiSummary)
		r.Post("/contents/{contentID}/publish", s.publishContent)
		r.Get("/tasks", s.listTasks)
		r.Route("/tasks/{taskID}", func(r chi.Router) {
			r.Get("/", s.getTask)
			r.Get("/result", s.getResult)
			r.Get("/stream", s.streamTask)
			r.Delete("/", s.cancelTask)
		})
	})
	return r
}

type submitResponse struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	StreamURL string `json:"stream_url"`
}

func (s *Server) submitSmartNote(w http.ResponseWriter, r *http.Request) {
	var owner, ok = s.owner(w, r)
	if !ok {
		return
	}

	var input task.Input
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		// Bound the request body; multipart framing needs a little slack
		// beyond the image itself.
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxImageBytes+(1<<20))
		if err := r.ParseMultipartForm(s.MaxImageBytes); err != nil {
			respondError(w, http.StatusBadRequest, "parsing multipart form: %s", err)
			return
		}
		var file, _, err = r.FormFile("image")
		if err != nil {
			respondError(w, http.StatusBadRequest, "missing image file: %s", err)
			return
		}
		defer file.Close()

		if input.Image, err = io.ReadAll(file); err != nil {
			respondError(w, http.StatusBadRequest, "reading image: %s", err)
			return
		}
		input.Title = r.FormValue("title")
	} else {
		var body struct {
			Text  string `json:"text"`
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "decoding request: %s", err)
			return
		}
		input.Text, input.Title = body.Text, body.Title
	}

	s.launch(w, task.KindSmartNote, owner, input, s.SmartNote)
}

func (s *Server) submitMultiSummary(w http.ResponseWriter, r *http.Request) {
	var owner, ok = s.owner(w, r)
	if !ok {
		return
	}

	var body struct {
		Notes             []task.Note `json:"notes"`
		MinNotesThreshold int         `json:"min_notes_threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "decoding request: %s", err)
		return
	}

	s.launch(w, task.KindMultiSummary, owner, task.Input{
		Notes:             body.Notes,
		MinNotesThreshold: body.MinNotesThreshold,
	}, s.MultiSummary)
}

// launch creates and starts a task, responding with its handle. All
// validation happens inside the pipeline, surfacing through task state.
func (s *Server) launch(w http.ResponseWriter, kind task.Kind, owner uuid.UUID, input task.Input, fn task.ProcessFunc) {
	var t = s.Registry.Create(kind, owner, input)
	s.Runner.Launch(t, fn)

	respond(w, http.StatusAccepted, submitResponse{
		TaskID:    t.ID().String(),
		Status:    string(task.StatusPending),
		StreamURL: fmt.Sprintf("/api/v1/tasks/%s/stream", t.ID()),
	})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	var owner, ok = s.owner(w, r)
	if !ok {
		return
	}

	var filter = task.ListFilter{
		Kind:   task.Kind(r.URL.Query().Get("kind")),
		Status: task.Status(r.URL.Query().Get("status")),
	}
	var snapshots = s.Registry.List(owner, filter)
	for i := range snapshots {
		elideIntermediates(&snapshots[i])
	}
	respond(w, http.StatusOK, map[string]interface{}{"tasks": snapshots})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	var snap, ok = s.taskSnapshot(w, r)
	if !ok {
		return
	}
	elideIntermediates(&snap)
	respond(w, http.StatusOK, snap)
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	var snap, ok = s.taskSnapshot(w, r)
	if !ok {
		return
	}
	if !snap.Status.Terminal() {
		respondError(w, http.StatusConflict, "task %s is %s, not terminal", snap.ID, snap.Status)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"task_id":     snap.ID,
		"status":      snap.Status,
		"result":      snap.Result,
		"error":       snap.Error,
		"error_class": snap.ErrorClass,
	})
}

func (s *Server) cancelTask(w http.ResponseWriter, r *http.Request) {
	var t, ok = s.ownedTask(w, r)
	if !ok {
		return
	}

	switch err := s.Registry.Cancel(t.ID()); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, task.ErrTaskTerminal):
		respondError(w, http.StatusConflict, "task %s is already terminal", t.ID())
	default:
		respondError(w, http.StatusNotFound, "task not found")
	}
}

// publishContent shares a persisted content into the community layer.
func (s *Server) publishContent(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.owner(w, r); !ok {
		return
	}

	var contentID, err = strconv.ParseInt(chi.URLParam(r, "contentID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusNotFound, "content not found")
		return
	}

	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err = json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "decoding request: %s", err)
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	if err = s.Store.SetContentPublic(r.Context(), contentID, body.Title, body.Description, time.Now()); err != nil {
		respondError(w, http.StatusNotFound, "content not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// owner parses the requesting user's identity, rejecting the request
// when absent or malformed.
func (s *Server) owner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var id, err = uuid.Parse(r.Header.Get(ownerHeader))
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing or invalid %s header", ownerHeader)
		return uuid.Nil, false
	}
	return id, true
}

// ownedTask resolves the request's task, treating tasks of other owners
// as not found.
func (s *Server) ownedTask(w http.ResponseWriter, r *http.Request) (*task.Task, bool) {
	var owner, ok = s.owner(w, r)
	if !ok {
		return nil, false
	}

	var id, err = uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	var t, found = s.Registry.Get(id)
	if !found || t.Owner() != owner {
		respondError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	return t, true
}

func (s *Server) taskSnapshot(w http.ResponseWriter, r *http.Request) (task.Snapshot, bool) {
	var t, ok = s.ownedTask(w, r)
	if !ok {
		return task.Snapshot{}, false
	}
	return t.Snapshot(), true
}

// elideIntermediates replaces oversized inline artifacts with a marker.
func elideIntermediates(snap *task.Snapshot) {
	for stage, payload := range snap.Intermediates {
		var encoded, err = json.Marshal(payload)
		if err != nil || len(encoded) <= maxSnapshotIntermediate {
			continue
		}
		snap.Intermediates[stage] = map[string]interface{}{
			"elided": true,
			"bytes":  len(encoded),
		}
	}
}

func respond(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithField("err", err).Warn("failed to write response")
	}
}

func respondError(w http.ResponseWriter, code int, format string, args ...interface{}) {
	respond(w, code, map[string]string{"error": fmt.Sprintf(format, args...)})
}
