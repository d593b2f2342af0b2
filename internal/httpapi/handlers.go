package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"shopflow/internal/api"
	"shopflow/internal/jobstore"
	"shopflow/internal/services"
	"shopflow/internal/workflow"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleStages(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.StageListResponse{Stages: api.FromStages(s.engine.GetStages())})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	job, err := s.engine.GetJob(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJobDetail(job, s.engine)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	history, err := s.engine.GetHistory(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromHistory(history))
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	var body api.TransitionRequest
	if !s.decode(w, r, &body) {
		return
	}
	outcome, err := s.engine.RequestTransition(r.Context(), api.ToTransitionRequest(id, body))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromOutcome(outcome, s.engine.Projector()))
}

func (s *Server) handleBoardStage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	var body api.BoardMoveRequest
	if !s.decode(w, r, &body) {
		return
	}
	outcome, err := s.engine.SetBoardStage(r.Context(), api.ToBoardMoveRequest(id, body))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromOutcome(outcome, s.engine.Projector()))
}

// handleBatch always answers 200 with per-item outcomes; item failures are in
// the body, not the status.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var body api.BatchRequest
	if !s.decode(w, r, &body) {
		return
	}
	reqs := make([]workflow.TransitionRequest, 0, len(body.Transitions))
	for _, item := range body.Transitions {
		reqs = append(reqs, api.ToTransitionRequest(0, item))
	}
	report, _ := s.engine.BatchRequestTransition(r.Context(), reqs)
	s.writeJSON(w, http.StatusOK, api.FromBatch(report, s.engine.Projector()))
}

func (s *Server) handleWorkload(w http.ResponseWriter, r *http.Request) {
	shop := mux.Vars(r)["shop"]
	report, err := s.engine.GetWorkload(services.WithShopID(r.Context(), shop), shop)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromWorkload(report))
}

func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	shop := mux.Vars(r)["shop"]
	projections, err := s.engine.GetTechnicianAssignments(services.WithShopID(r.Context(), shop), shop)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProjections(shop, projections))
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	shop := mux.Vars(r)["shop"]
	board, err := s.engine.GetBoard(services.WithShopID(r.Context(), shop), shop)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromBoard(board, s.engine.Projector()))
}

func (s *Server) jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), api.FromError(err))
}

func statusFor(err error) int {
	if errors.Is(err, jobstore.ErrJobNotFound) {
		return http.StatusNotFound
	}
	switch services.KindOf(err) {
	case services.KindStructural:
		return http.StatusBadRequest
	case services.KindValidation:
		return http.StatusUnprocessableEntity
	case services.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}
