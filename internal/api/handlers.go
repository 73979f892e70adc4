package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shpitdev/zuno-lead-enrichment/internal/app"
	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
	"github.com/shpitdev/zuno-lead-enrichment/internal/lead"
	"github.com/shpitdev/zuno-lead-enrichment/internal/pipeline"
	"github.com/shpitdev/zuno-lead-enrichment/internal/workspace"
	localio "github.com/shpitdev/zuno-lead-enrichment/pkg/pipeline/io/local"
	"github.com/shpitdev/zuno-lead-enrichment/pkg/pipeline/redact"
)

const maxUploadBytes = 32 << 20

type ingestResponse struct {
	FileName string      `json:"fileName"`
	Leads    []lead.Lead `json:"leads"`
}

const batchRunningMessage = "A batch is already running"

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	// The running batch exports and saves under the uploaded file name.
	if s.app.Orchestrator.Running() {
		s.respondWithError(w, http.StatusConflict, batchRunningMessage)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "A spreadsheet must be uploaded in the \"file\" field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Error reading file: "+header.Filename+".")
		return
	}

	// A new upload always replaces the previous one, even when it fails to parse.
	s.mu.Lock()
	s.session = session{}
	s.mu.Unlock()

	leads, err := app.DecodeLeads(header.Filename, data)
	if errors.Is(err, localio.ErrUnsupportedFileType) {
		s.respondWithError(w, http.StatusBadRequest, localio.UnsupportedFileTypeMessage)
		return
	}
	if err != nil {
		s.logger.Info("upload rejected", zap.String("file", header.Filename), zap.Error(err))
		s.respondWithError(w, http.StatusUnprocessableEntity, lead.ParseError(err))
		return
	}

	s.mu.Lock()
	s.session = session{fileName: header.Filename, leads: leads}
	s.mu.Unlock()

	s.respondWithJSON(w, http.StatusOK, ingestResponse{FileName: header.Filename, Leads: leads})
}

func (s *Server) handleClearIngest(w http.ResponseWriter, _ *http.Request) {
	if s.app.Orchestrator.Running() {
		s.respondWithError(w, http.StatusConflict, batchRunningMessage)
		return
	}
	s.mu.Lock()
	s.session.fileName = ""
	s.session.leads = nil
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

type startBatchRequest struct {
	DeepResearch bool `json:"deepResearch"`
}

func (s *Server) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	var req startBatchRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	leads := s.session.leads
	s.mu.Unlock()

	_, err := s.app.Orchestrator.Start(s.ctx, leads, enrich.ModeFor(req.DeepResearch))
	switch {
	case errors.Is(err, pipeline.ErrNoLeads):
		s.respondWithError(w, http.StatusConflict, "No properties loaded. Upload a spreadsheet first.")
		return
	case errors.Is(err, pipeline.ErrBatchRunning):
		s.respondWithError(w, http.StatusConflict, batchRunningMessage)
		return
	case err != nil:
		s.logger.Error("failed to start batch", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not start batch")
		return
	}
	s.respondWithJSON(w, http.StatusAccepted, s.app.Orchestrator.Snapshot())
}

func (s *Server) handleCurrentBatch(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, s.app.Orchestrator.Snapshot())
}

func (s *Server) handleAbortBatch(w http.ResponseWriter, _ *http.Request) {
	if !s.app.Orchestrator.Abort() {
		s.respondWithError(w, http.StatusConflict, "No batch is running")
		return
	}
	s.app.Orchestrator.Wait()
	s.respondWithJSON(w, http.StatusOK, s.app.Orchestrator.Snapshot())
}

func (s *Server) handleExportBatch(w http.ResponseWriter, r *http.Request) {
	format, err := pipeline.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "format must be xlsx or csv")
		return
	}
	st := s.app.Orchestrator.Snapshot()
	if st.Phase == pipeline.Running {
		s.respondWithError(w, http.StatusConflict, "The batch is still running")
		return
	}
	if len(st.Rows) == 0 {
		s.respondWithError(w, http.StatusNotFound, "No results to export")
		return
	}

	s.mu.Lock()
	source := s.session.fileName
	s.mu.Unlock()
	s.respondWithExport(w, pipeline.ExportFileName(source, format), format, st.Rows)
}

type searchRequest struct {
	ContactName  string `json:"contactName"`
	Address      string `json:"address"`
	DeepResearch bool   `json:"deepResearch"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	s.session.manual = nil
	s.mu.Unlock()

	res, err := pipeline.Search(r.Context(), s.app.Enricher, req.ContactName, req.Address, enrich.ModeFor(req.DeepResearch))
	if errors.Is(err, pipeline.ErrAddressRequired) {
		s.respondWithError(w, http.StatusBadRequest, pipeline.AddressRequiredMessage)
		return
	}
	if err != nil {
		s.logger.Error("manual search failed", redact.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, redact.Message(err))
		return
	}

	s.mu.Lock()
	row := res.Row
	s.session.manual = &row
	s.mu.Unlock()

	s.respondWithJSON(w, http.StatusOK, res)
}

type nearbyRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type nearbyResponse struct {
	Properties []enrich.NearbyProperty `json:"properties"`
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	var req nearbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Latitude == nil || req.Longitude == nil {
		s.respondWithError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	lat, lon := *req.Latitude, *req.Longitude
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		s.respondWithError(w, http.StatusBadRequest, "latitude and longitude are out of range")
		return
	}
	s.respondWithJSON(w, http.StatusOK, nearbyResponse{Properties: s.app.Nearby.FindNearby(r.Context(), lat, lon)})
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, s.app.Workspaces.List())
}

type saveWorkspaceRequest struct {
	Name string `json:"name"`
	// Source is "batch" (default) or "manual".
	Source string `json:"source"`
}

func (s *Server) handleSaveWorkspace(w http.ResponseWriter, r *http.Request) {
	var req saveWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var rows []pipeline.Row
	name := strings.TrimSpace(req.Name)
	switch strings.ToLower(strings.TrimSpace(req.Source)) {
	case "", "batch":
		st := s.app.Orchestrator.Snapshot()
		if st.Phase != pipeline.Completed || len(st.Rows) == 0 {
			s.respondWithError(w, http.StatusConflict, "No completed batch to save")
			return
		}
		rows = st.Rows
		if name == "" {
			s.mu.Lock()
			name = "Batch: " + s.session.fileName
			s.mu.Unlock()
		}
	case "manual":
		s.mu.Lock()
		manual := s.session.manual
		s.mu.Unlock()
		if manual == nil {
			s.respondWithError(w, http.StatusConflict, "No manual search result to save")
			return
		}
		rows = []pipeline.Row{*manual}
		if name == "" {
			name = "Manual: " + manual.Subject
		}
	default:
		s.respondWithError(w, http.StatusBadRequest, "source must be batch or manual")
		return
	}

	ws, err := s.app.Workspaces.Save(r.Context(), rows, name)
	if errors.Is(err, workspace.ErrEmptyName) {
		s.respondWithError(w, http.StatusBadRequest, "Workspace name is required")
		return
	}
	if err != nil {
		s.logger.Error("workspace not persisted", zap.String("id", ws.ID), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Workspace \""+ws.Name+"\" could not be persisted")
		return
	}
	s.respondWithJSON(w, http.StatusCreated, ws)
}

type workspaceResponse struct {
	workspace.Workspace
	Sources []enrich.GroundingSource `json:"sources"`
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.app.Workspaces.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondWithError(w, http.StatusNotFound, "Workspace not found")
		return
	}
	s.respondWithJSON(w, http.StatusOK, workspaceResponse{Workspace: ws, Sources: workspace.Sources(ws)})
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	deleted, err := s.app.Workspaces.Delete(r.Context(), chi.URLParam(r, "id"), func(workspace.Workspace) bool {
		return confirmed
	})
	switch {
	case errors.Is(err, workspace.ErrNotFound):
		s.respondWithError(w, http.StatusNotFound, "Workspace not found")
	case err != nil:
		s.logger.Error("workspace delete not persisted", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Workspace deletion could not be persisted")
	case !deleted:
		s.respondWithError(w, http.StatusPreconditionRequired, "Deletion must be confirmed with confirm=true")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleExportWorkspace(w http.ResponseWriter, r *http.Request) {
	format, err := pipeline.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "format must be xlsx or csv")
		return
	}
	ws, err := s.app.Workspaces.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondWithError(w, http.StatusNotFound, "Workspace not found")
		return
	}
	s.respondWithExport(w, pipeline.ExportFileName(ws.Name, format), format, ws.Searches)
}

type healthResponse struct {
	Status     string `json:"status"`
	Batch      string `json:"batch"`
	Workspaces int    `json:"workspaces"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Batch:      s.app.Orchestrator.Snapshot().Phase.String(),
		Workspaces: len(s.app.Workspaces.List()),
	})
}

// --- Helper Functions ---

// decodeOptionalJSON decodes r's body into v, accepting an empty body.
func decodeOptionalJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) respondWithExport(w http.ResponseWriter, fileName string, format pipeline.Format, rows []pipeline.Row) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	if err := pipeline.Write(w, format, rows, s.app.Location); err != nil {
		s.logger.Error("export failed", zap.String("file", fileName), zap.Error(err))
	}
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		code = http.StatusInternalServerError
		response = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
