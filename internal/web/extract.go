package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	appLog "calscan/internal/log"
	"calscan/internal/model"
	"calscan/internal/ocr"
	"calscan/internal/pipeline"
	"calscan/internal/source"
	"calscan/internal/store"
)

// maxUploadSize bounds an uploaded calendar image.
const maxUploadSize = 10 << 20

type extractResponse struct {
	Success bool           `json:"success"`
	RunID   string         `json:"run_id,omitempty"`
	Mode    string         `json:"mode"`
	Events  []model.Record `json:"events"`
	Count   int            `json:"count"`
	RawText string         `json:"raw_text"`
}

// handleExtract reads an uploaded image (multipart "file") or pasted text
// ("text") and returns the events found. Form fields:
// academic_year_start (required, 2000-2100), timezone, mode, year, month.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1<<20)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusBadRequest, tooLargeMessage())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	year, err := strconv.Atoi(r.FormValue("academic_year_start"))
	if err != nil || year < 2000 || year > 2100 {
		writeError(w, http.StatusBadRequest, "Invalid academic year")
		return
	}
	tz := r.FormValue("timezone")
	if tz == "" {
		tz = s.cfg.Timezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid timezone")
		return
	}
	mode, err := pipeline.ParseMode(r.FormValue("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := pipeline.RequestFromConfig(s.cfg, pipeline.Params{
		Mode:              mode,
		AcademicYearStart: year,
		Year:              parseIntDefault(r.FormValue("year"), 0),
		Month:             time.Month(parseIntDefault(r.FormValue("month"), 0)),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		res      pipeline.Result
		filename string
	)
	file, hdr, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		filename = hdr.Filename
		var (
			status int
			msg    string
		)
		res, status, msg = s.extractUpload(r, file, filename, req)
		if status != 0 {
			writeError(w, status, msg)
			return
		}
	case errors.Is(err, http.ErrMissingFile) && r.FormValue("text") != "":
		res, err = pipeline.ExtractText(r.FormValue("text"), req.Mode, req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "file or text is required")
		return
	}

	resp := extractResponse{
		Success: true,
		Mode:    string(res.Mode),
		Events:  model.Records(res.Events),
		Count:   len(res.Events),
		RawText: res.RawText,
	}
	if s.store != nil {
		run := &store.Run{
			Filename:          filename,
			Mode:              string(res.Mode),
			AcademicYearStart: year,
			Timezone:          tz,
			RawText:           res.RawText,
			Events:            res.Events,
		}
		if err := s.store.SaveRun(r.Context(), run); err != nil {
			appLog.Error("failed to save run", err, "filename", filename)
		} else {
			resp.RunID = run.ID
		}
	}
	appLog.Info("extract done", "filename", filename, "mode", resp.Mode, "events", resp.Count, "run", resp.RunID)
	writeJSON(w, http.StatusOK, resp)
}

// extractUpload validates and decodes an uploaded image or PDF and runs OCR
// over every page. A non-zero status means the upload failed with msg.
func (s *Server) extractUpload(r *http.Request, file io.Reader, filename string, req pipeline.Request) (res pipeline.Result, status int, msg string) {
	if err := source.CheckName(filename); err != nil {
		return res, http.StatusBadRequest, "Unsupported file format. Please upload PDF, PNG, JPEG, BMP, TIFF, WebP or GIF."
	}
	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		return res, http.StatusBadRequest, "failed to read upload"
	}
	if len(data) > maxUploadSize {
		return res, http.StatusBadRequest, tooLargeMessage()
	}
	pages, err := source.DecodeDocument(data)
	if errors.Is(err, source.ErrNoPageImages) {
		return res, http.StatusBadRequest, "This PDF has no scanned pages. Please upload a scan or export the pages as images."
	}
	if err != nil {
		return res, http.StatusBadRequest, err.Error()
	}
	if s.engine == nil {
		return res, http.StatusServiceUnavailable, "OCR engine not configured"
	}

	res, err = pipeline.ExtractPages(r.Context(), pages, s.engine, req)
	if errors.Is(err, ocr.ErrNoText) {
		appLog.Info("no text recognized", "filename", filename)
		return pipeline.Result{Mode: req.Mode}, 0, ""
	}
	if err != nil {
		appLog.Error("extraction failed", err, "filename", filename)
		return res, http.StatusInternalServerError, "Processing error: " + err.Error()
	}
	return res, 0, ""
}

func tooLargeMessage() string {
	return fmt.Sprintf("File too large. Maximum size is %dMB", maxUploadSize>>20)
}
