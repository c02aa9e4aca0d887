package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bledden/tinker-voice/internal/domain"
	"github.com/bledden/tinker-voice/internal/estimate"
	"github.com/bledden/tinker-voice/internal/orchestrator"
)

// ─── Run Lifecycle Endpoints ────────────────────────────────────────────────

// createRunRequest is the POST /v1/runs body.
type createRunRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	DatasetID   string                `json:"dataset_id"`
	DatasetSize int                   `json:"dataset_size,omitempty"`
	Config      domain.TrainingConfig `json:"config"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs": s.orch.Runs(),
	})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if req.DatasetSize > 0 {
		if err := estimate.Annotate(&req.Config, req.DatasetSize); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	run, err := s.orch.CreateRun(r.Context(), orchestrator.CreateRunInput{
		Name:        req.Name,
		Description: req.Description,
		DatasetID:   req.DatasetID,
		Config:      req.Config,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.orch.Run(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.orch.StartRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.orch.CancelRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRefreshRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.orch.RefreshRuns(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs": runs,
	})
}

func (s *Server) handleGetActiveRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.orch.ActiveRun()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"run": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run": run})
}

func (s *Server) handleSetActiveRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	s.orch.SetActiveRun(req.ID)
	writeJSON(w, http.StatusOK, map[string]string{"active_run": req.ID})
}

// ─── Estimation ─────────────────────────────────────────────────────────────

// estimateRequest is the POST /v1/estimate body.
type estimateRequest struct {
	DatasetSize int         `json:"dataset_size"`
	Epochs      int         `json:"epochs"`
	Tier        domain.Tier `json:"tier"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	sum, err := estimate.ForRun(req.DatasetSize, req.Epochs, req.Tier)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
