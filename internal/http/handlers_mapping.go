package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"kpiboard/internal/amqp"
	"kpiboard/internal/core"
	"kpiboard/internal/session"
	"kpiboard/internal/storage"
)

type mappingFieldView struct {
	Name     string
	Label    string
	Required bool
	Selected string
}

type presetView struct {
	Name string
}

type mappingFormView struct {
	HasData        bool
	Filename       string
	Sheet          string
	Columns        []string
	Fields         []mappingFieldView
	DateLayout     string
	Notice         string
	Error          string
	PresetsEnabled bool
	Presets        []presetView
}

// renderMappingForm draws the column-binding form for the session's current
// dataset. notice and errMsg are shown above the form when non-empty.
func (s *Server) renderMappingForm(w http.ResponseWriter, r *http.Request, st *session.State, notice, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	table, mapping, layout := st.Snapshot()
	filename, sheet, _, _ := st.Meta()

	vm := mappingFormView{
		HasData:        st.HasDataset(),
		Filename:       filename,
		Sheet:          sheet,
		Columns:        table.Columns,
		DateLayout:     layout,
		Notice:         notice,
		Error:          errMsg,
		PresetsEnabled: s.presets != nil,
	}
	required := map[core.Field]bool{}
	for _, f := range core.RequiredFields() {
		required[f] = true
	}
	for _, f := range core.AllFields() {
		vm.Fields = append(vm.Fields, mappingFieldView{
			Name:     string(f),
			Label:    f.Label(),
			Required: required[f],
			Selected: mapping[f],
		})
	}

	if s.presets != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		presets, err := s.presets.ListPresets(ctx)
		if err != nil {
			slog.WarnContext(r.Context(), "Preset listing failed", "error", err)
		}
		for _, p := range presets {
			vm.Presets = append(vm.Presets, presetView{Name: p.Name})
		}
	}

	if s.templates == nil {
		writeError(w, http.StatusInternalServerError, "templates not loaded")
		return
	}
	if err := s.templates.ExecuteTemplate(w, "mapping_form.html", vm); err != nil {
		slog.ErrorContext(r.Context(), "Mapping form template failed", "error", err, "template", "mapping_form.html")
	}
}

// handleMappingForm serves the mapping partial on page load.
func (s *Server) handleMappingForm(w http.ResponseWriter, r *http.Request) {
	_, st := s.session(w, r)
	s.renderMappingForm(w, r, st, "", "")
}

// handleMapping applies user-confirmed column bindings to the session's
// dataset and triggers a dashboard refresh.
func (s *Server) handleMapping(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, st := s.session(w, r)
	if !st.HasDataset() {
		writeError(w, http.StatusConflict, "Load a workbook before mapping columns.")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed form submission.")
		return
	}

	mapping := core.Mapping{}
	for _, f := range core.AllFields() {
		if v := strings.TrimSpace(r.FormValue("field_" + string(f))); v != "" {
			mapping[f] = v
		}
	}
	layout := strings.TrimSpace(r.FormValue("date_layout"))

	if err := mapping.Validate(); err != nil {
		st.SetMapping(mapping, layout)
		s.sessions.Touch(id, st)
		s.renderMappingFormStatus(w, r, st, "", requiredFieldMessage(err), http.StatusUnprocessableEntity)
		return
	}

	st.SetMapping(mapping, layout)
	s.sessions.Touch(id, st)

	// Build the unfiltered report now so mapping mistakes surface here,
	// not on the next dashboard poll.
	rep, err := s.getReport(r.Context(), id, st, core.Filter{})
	if err != nil {
		slog.WarnContext(r.Context(), "Mapping produced no report", "error", err, "session_id", id)
		switch {
		case errors.Is(err, core.ErrColumnNotFound):
			s.renderMappingFormStatus(w, r, st, "", "A mapped column no longer exists in the table.", http.StatusUnprocessableEntity)
		case errors.Is(err, core.ErrEmptyTable):
			s.renderMappingFormStatus(w, r, st, "", "The loaded sheet has no data rows.", http.StatusUnprocessableEntity)
		default:
			s.renderMappingFormStatus(w, r, st, "", "Could not build the dashboard from this mapping.", http.StatusUnprocessableEntity)
		}
		return
	}

	s.publishIngested(r.Context(), id, st, rep.Stats.RowsUsed, len(rep.Members), rep.Stats.DroppedDates)

	notice := fmt.Sprintf("Mapping applied: %d of %d rows usable.", rep.Stats.RowsUsed, rep.Stats.RowsTotal)
	if rep.Stats.RowsUsed == 0 {
		notice = "Mapping applied, but no rows were usable. Check the date column and format."
	}

	w.Header().Set("HX-Trigger", "report-updated")
	s.renderMappingForm(w, r, st, notice, "")
}

// renderMappingFormStatus is renderMappingForm with a non-200 status code.
func (s *Server) renderMappingFormStatus(w http.ResponseWriter, r *http.Request, st *session.State, notice, errMsg string, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	s.renderMappingForm(w, r, st, notice, errMsg)
}

func requiredFieldMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrUnmappedDate):
		return "A date column is required."
	case errors.Is(err, core.ErrUnmappedMember):
		return "A member column is required."
	}
	return "The mapping is incomplete."
}

// publishIngested notifies downstream consumers that a dataset was mapped.
// Failures are logged and swallowed: messaging is best-effort.
func (s *Server) publishIngested(ctx context.Context, sessionID string, st *session.State, rows, members, dropped int) {
	if s.publisher == nil {
		return
	}
	filename, sheet, _, _ := st.Meta()
	msg := amqp.NewDatasetIngestedMessage(sessionID, filename, sheet, rows, members, dropped)
	if err := s.publisher.PublishDatasetIngested(ctx, msg); err != nil {
		slog.WarnContext(ctx, "Ingest notification failed", "error", err, "session_id", sessionID)
	}
}

// handlePresets lists saved mapping presets (GET) or saves the session's
// current mapping under a name (POST).
func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if s.presets == nil {
		writeError(w, http.StatusNotFound, "Mapping presets are disabled.")
		return
	}

	switch r.Method {
	case http.MethodGet:
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		presets, err := s.presets.ListPresets(ctx)
		if err != nil {
			slog.ErrorContext(r.Context(), "Preset listing failed", "error", err)
			http.Error(w, "could not list presets", http.StatusInternalServerError)
			return
		}
		type item struct {
			Name       string    `json:"name"`
			DateLayout string    `json:"date_layout,omitempty"`
			CreatedAt  time.Time `json:"created_at"`
		}
		out := make([]item, 0, len(presets))
		for _, p := range presets {
			out = append(out, item{Name: p.Name, DateLayout: p.DateLayout, CreatedAt: p.CreatedAt})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)

	case http.MethodPost:
		id, st := s.session(w, r)
		name := strings.TrimSpace(r.FormValue("name"))
		if name == "" {
			s.renderMappingFormStatus(w, r, st, "", "A preset needs a name.", http.StatusUnprocessableEntity)
			return
		}
		_, mapping, layout := st.Snapshot()
		if err := mapping.Validate(); err != nil {
			s.renderMappingFormStatus(w, r, st, "", "Complete the required mappings before saving a preset.", http.StatusUnprocessableEntity)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		err := s.presets.SavePreset(ctx, storage.Preset{Name: name, Mapping: mapping, DateLayout: layout})
		if err != nil {
			slog.ErrorContext(r.Context(), "Preset save failed", "error", err, "name", name)
			s.renderMappingFormStatus(w, r, st, "", "Could not save the preset.", http.StatusInternalServerError)
			return
		}
		slog.InfoContext(r.Context(), "Preset saved", "name", name, "session_id", id)
		s.renderMappingForm(w, r, st, "Preset \""+name+"\" saved.", "")

	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleApplyPreset binds a saved preset's mapping to the session's dataset.
func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.presets == nil {
		writeError(w, http.StatusNotFound, "Mapping presets are disabled.")
		return
	}
	id, st := s.session(w, r)
	if !st.HasDataset() {
		writeError(w, http.StatusConflict, "Load a workbook before applying a preset.")
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	p, err := s.presets.GetPreset(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrPresetNotFound) {
			s.renderMappingFormStatus(w, r, st, "", "No preset named \""+name+"\".", http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "Preset load failed", "error", err, "name", name)
		s.renderMappingFormStatus(w, r, st, "", "Could not load the preset.", http.StatusInternalServerError)
		return
	}

	st.SetMapping(p.Mapping, p.DateLayout)
	s.sessions.Touch(id, st)

	w.Header().Set("HX-Trigger", "report-updated")
	s.renderMappingForm(w, r, st, "Preset \""+name+"\" applied.", "")
}
