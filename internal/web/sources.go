package web

import (
	"errors"
	"net/http"

	"calscan/internal/config"
	appLog "calscan/internal/log"
	"calscan/internal/scheduler"
	"calscan/internal/store"
)

type sourceView struct {
	config.SourceConfig
	LatestRun *store.RunView `json:"latest_run,omitempty"`
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	views := make([]sourceView, 0, len(s.cfg.Sources))
	for _, src := range s.cfg.Sources {
		v := sourceView{SourceConfig: src}
		if s.store != nil {
			run, err := s.store.LatestForSource(r.Context(), src.ID)
			switch {
			case err == nil:
				rv := run.View(false)
				v.LatestRun = &rv
			case !errors.Is(err, store.ErrNotFound):
				appLog.Error("failed to load latest run", err, "source", src.ID)
			}
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": views})
}

// handleSourceICS serves the newest run of a configured source, giving
// calendar apps a stable subscription URL.
func (s *Server) handleSourceICS(w http.ResponseWriter, r *http.Request) {
	src, ok := s.cfg.Source(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	if !s.requireStore(w) {
		return
	}
	run, err := s.store.LatestForSource(r.Context(), src.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "source has not been extracted yet")
		return
	}
	if err != nil {
		appLog.Error("failed to load latest run", err, "source", src.ID)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	name := src.Name
	if name == "" {
		name = src.ID
	}
	writeICS(w, r, run, name)
}

func (s *Server) handleSourceRefresh(w http.ResponseWriter, r *http.Request) {
	src, ok := s.cfg.Source(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "source refresh not configured")
		return
	}
	run, err := s.refresher.Refresh(r.Context(), src)
	if errors.Is(err, scheduler.ErrUnchanged) {
		writeJSON(w, http.StatusOK, map[string]any{"changed": false})
		return
	}
	if err != nil {
		appLog.Error("source refresh failed", err, "source", src.ID)
		writeError(w, http.StatusBadGateway, "refresh failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": true, "run": run.View(false)})
}
