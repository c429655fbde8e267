package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"kpiboard/internal/dataset/excel"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	// Ensure the browser has a session before the partials start polling.
	s.session(w, r)

	data := struct {
		SourceName string
	}{
		SourceName: s.sourceName,
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleUpload receives a workbook, extracts the requested sheet as a raw
// table, and stores it in the session with a suggested column mapping.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, st := s.session(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		slog.WarnContext(r.Context(), "Upload rejected", "error", err, "max_bytes", s.maxUploadBytes)
		writeError(w, http.StatusRequestEntityTooLarge, "Upload too large or malformed.")
		return
	}

	file, header, err := r.FormFile("workbook")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No workbook file in the request.")
		return
	}
	defer func() { _ = file.Close() }()

	wb, err := excel.Open(file)
	if err != nil {
		slog.WarnContext(r.Context(), "Workbook open failed", "error", err, "filename", header.Filename)
		writeError(w, http.StatusUnprocessableEntity, "That file is not a readable Excel workbook.")
		return
	}
	defer func() { _ = wb.Close() }()

	sheet := strings.TrimSpace(r.FormValue("sheet"))
	names := wb.Sheets()
	if sheet == "" && len(names) > 0 {
		sheet = names[0]
	}

	table, err := wb.Table(sheet)
	if err != nil {
		slog.WarnContext(r.Context(), "Sheet extraction failed", "error", err, "sheet", sheet)
		switch {
		case errors.Is(err, excel.ErrNoSheets):
			writeError(w, http.StatusUnprocessableEntity, "The workbook contains no sheets.")
		case errors.Is(err, excel.ErrEmptySheet):
			writeError(w, http.StatusUnprocessableEntity, "Sheet \""+sheet+"\" has no data rows.")
		default:
			writeError(w, http.StatusUnprocessableEntity, "Could not read sheet \""+sheet+"\".")
		}
		return
	}

	st.SetDataset(header.Filename, sheet, names, table)
	s.sessions.Touch(id, st)

	slog.InfoContext(r.Context(), "Dataset uploaded",
		"session_id", id,
		"filename", header.Filename,
		"sheet", sheet,
		"rows", table.Len(),
		"columns", len(table.Columns))

	w.Header().Set("HX-Trigger", "report-updated")
	s.renderMappingForm(w, r, st, "Loaded "+header.Filename+". Review the suggested mapping below.", "")
}

// handleLoadSource pulls a table from the configured auxiliary source
// (for example a shared Google spreadsheet) into the session, as an
// alternative to uploading a file.
func (s *Server) handleLoadSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.source == nil {
		writeError(w, http.StatusNotFound, "No external data source is configured.")
		return
	}
	id, st := s.session(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	names, err := s.source.Sheets(ctx)
	if err != nil {
		slog.ErrorContext(r.Context(), "Source sheet listing failed", "error", err, "source", s.sourceName)
		writeError(w, http.StatusBadGateway, "Could not reach the configured data source.")
		return
	}

	sheet := strings.TrimSpace(r.FormValue("sheet"))
	if sheet == "" && len(names) > 0 {
		sheet = names[0]
	}

	table, err := s.source.Table(ctx, sheet)
	if err != nil {
		slog.ErrorContext(r.Context(), "Source table read failed", "error", err, "source", s.sourceName, "sheet", sheet)
		writeError(w, http.StatusUnprocessableEntity, "Could not read \""+sheet+"\" from "+s.sourceName+".")
		return
	}

	st.SetDataset(s.sourceName, sheet, names, table)
	s.sessions.Touch(id, st)

	slog.InfoContext(r.Context(), "Dataset loaded from source",
		"session_id", id,
		"source", s.sourceName,
		"sheet", sheet,
		"rows", table.Len())

	w.Header().Set("HX-Trigger", "report-updated")
	s.renderMappingForm(w, r, st, "Loaded "+sheet+" from "+s.sourceName+".", "")
}
