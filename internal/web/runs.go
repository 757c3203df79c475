package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"calscan/internal/ics"
	appLog "calscan/internal/log"
	"calscan/internal/model"
	"calscan/internal/store"
)

// requireStore writes 503 and returns false when no run store is wired.
func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run store not configured")
		return false
	}
	return true
}

// loadRun fetches the run named by the {id} path value, writing the error
// response itself when it fails.
func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*store.Run, bool) {
	if !s.requireStore(w) {
		return nil, false
	}
	run, err := s.store.Run(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		appLog.Error("failed to load run", err, "id", r.PathValue("id"))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return nil, false
	}
	return run, true
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), store.DefaultListLimit)
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		appLog.Error("failed to list runs", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	views := make([]store.RunView, 0, len(runs))
	for i := range runs {
		views = append(views, runs[i].View(false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": views})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run.View(true))
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	err := s.store.DeleteRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		appLog.Error("failed to delete run", err, "id", r.PathValue("id"))
		writeError(w, http.StatusInternalServerError, "failed to delete run")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunICS(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeICS(w, r, run, run.Filename)
}

// writeICS serves run as a calendar file. The run ID doubles as the ETag
// so subscribed clients can poll cheaply.
func writeICS(w http.ResponseWriter, r *http.Request, run *store.Run, name string) {
	etag := `"` + run.ID + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	body := ics.Encode(run.Events, ics.EncodeOptions{
		Name:     name,
		Location: resolveLocationOrUTC(run.Timezone),
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, run.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

// syncRequest picks what to push. Events, when present, replaces the run's
// events (the user may have edited them); otherwise Indices selects from
// the stored events, and an empty body pushes them all.
type syncRequest struct {
	Indices []int          `json:"indices"`
	Events  []model.Record `json:"events"`
}

func (s *Server) handleRunSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "Google Calendar sync not configured")
		return
	}
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	var req syncRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	events, err := selectEvents(run.Events, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusBadRequest, "No events selected")
		return
	}

	res, err := s.syncer.Sync(r.Context(), events, resolveLocationOrUTC(run.Timezone))
	if err != nil {
		appLog.Error("sync failed", err, "run", run.ID)
		writeError(w, http.StatusBadGateway, "sync failed: "+err.Error())
		return
	}
	appLog.Info("run synced", "run", run.ID, "created", res.Created, "failed", len(res.Failed))
	writeJSON(w, http.StatusOK, res)
}

func selectEvents(stored []model.Event, req syncRequest) ([]model.Event, error) {
	if len(req.Events) > 0 {
		events := make([]model.Event, 0, len(req.Events))
		for i, rec := range req.Events {
			ev, err := rec.Event()
			if err != nil {
				return nil, fmt.Errorf("events[%d]: %w", i, err)
			}
			events = append(events, ev)
		}
		return events, nil
	}
	if req.Indices == nil {
		return stored, nil
	}
	events := make([]model.Event, 0, len(req.Indices))
	for _, i := range req.Indices {
		if i < 0 || i >= len(stored) {
			return nil, fmt.Errorf("event index %d out of range", i)
		}
		events = append(events, stored[i])
	}
	return events, nil
}

func (s *Server) handleCalendars(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "Google Calendar sync not configured")
		return
	}
	cals, err := s.syncer.Calendars(r.Context())
	if err != nil {
		appLog.Error("failed to list calendars", err)
		writeError(w, http.StatusBadGateway, "failed to list calendars: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"calendars": cals})
}
