package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/imf-gadgets/gadget-core/internal/audit"
	"github.com/imf-gadgets/gadget-core/internal/gadget"
)

// createGadgetRequest is the body of POST /gadgets. Name is the label the
// codename prefix is applied to.
type createGadgetRequest struct {
	Name string `json:"name"`
}

// updateGadgetRequest is the body of PATCH /gadgets/{id}. Absent fields are
// left unchanged.
type updateGadgetRequest struct {
	Name   *string `json:"name"`
	Status *string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type selfDestructResponse struct {
	ConfirmationCode string `json:"confirmationCode"`
}

// handleListGadgets returns every gadget, optionally filtered by ?status=.
// Each gadget carries a freshly drawn missionSuccessProbability.
func (s *Server) handleListGadgets(w http.ResponseWriter, r *http.Request) {
	filter := gadget.Filter{Status: gadget.Status(r.URL.Query().Get("status"))}

	views, err := s.gadgets.List(r.Context(), filter)
	if err != nil {
		s.writeGadgetError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, views)
}

// handleGetGadget returns one annotated gadget.
func (s *Server) handleGetGadget(w http.ResponseWriter, r *http.Request) {
	view, err := s.gadgets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeGadgetError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// handleCreateGadget registers a new gadget in status Available.
func (s *Server) handleCreateGadget(w http.ResponseWriter, r *http.Request) {
	var req createGadgetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !requireFields(w, "name", req.Name) {
		return
	}

	actor := subjectFrom(r.Context())
	g, err := s.gadgets.Create(r.Context(), actor, req.Name)
	if err != nil {
		s.writeGadgetError(w, r, err)
		return
	}

	s.auditLog(r, audit.ActionCreate, audit.EntityGadget, g.ID, actor, map[string]any{
		"name": g.Name,
	})
	writeJSON(w, http.StatusCreated, g)
}

// handleUpdateGadget renames a gadget and/or changes its status between
// Available and Deployed.
func (s *Server) handleUpdateGadget(w http.ResponseWriter, r *http.Request) {
	var req updateGadgetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u := gadget.Update{Name: req.Name}
	if req.Status != nil {
		st := gadget.Status(*req.Status)
		u.Status = &st
	}

	actor := subjectFrom(r.Context())
	g, err := s.gadgets.Update(r.Context(), actor, chi.URLParam(r, "id"), u)
	if err != nil {
		s.writeGadgetError(w, r, err)
		return
	}

	details := map[string]any{"status": g.Status}
	if req.Name != nil {
		details["name"] = g.Name
	}
	s.auditLog(r, audit.ActionUpdate, audit.EntityGadget, g.ID, actor, details)
	writeJSON(w, http.StatusOK, g)
}

// handleDecommissionGadget retires a gadget. The record is kept.
func (s *Server) handleDecommissionGadget(w http.ResponseWriter, r *http.Request) {
	actor := subjectFrom(r.Context())
	g, err := s.gadgets.Decommission(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		s.writeGadgetError(w, r, err)
		return
	}

	s.auditLog(r, audit.ActionDecommission, audit.EntityGadget, g.ID, actor, nil)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Gadget decommissioned"})
}

// handleSelfDestructGadget destroys a gadget and returns the confirmation code.
func (s *Server) handleSelfDestructGadget(w http.ResponseWriter, r *http.Request) {
	actor := subjectFrom(r.Context())
	res, err := s.gadgets.SelfDestruct(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		s.writeGadgetError(w, r, err)
		return
	}

	s.auditLog(r, audit.ActionSelfDestruct, audit.EntityGadget, res.Gadget.ID, actor, nil)
	writeJSON(w, http.StatusOK, selfDestructResponse{ConfirmationCode: res.ConfirmationCode})
}
