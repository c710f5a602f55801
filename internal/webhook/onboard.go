package webhook

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cort/triage/internal/project"
)

// HandleOnboard registers a repository and builds its initial codebase
// understanding. POST registers a new project (conflict when it already
// exists); PUT registers or replaces and re-onboards.
func (h *Handler) HandleOnboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var info project.Info
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid data")
		return
	}
	if err := info.Validate(); err != nil {
		h.logger.Printf("[Onboard] Invalid project info: %v", err)
		writeStatus(w, http.StatusBadRequest, "invalid project info: "+err.Error())
		return
	}

	if r.Method == http.MethodPost {
		if _, exists := h.projects.Get(info.RepoFullName); exists {
			writeStatus(w, http.StatusConflict, "project already exists")
			return
		}
		if err := h.projects.Add(info); err != nil {
			writeStatus(w, http.StatusInternalServerError, "error registering project")
			return
		}
	} else {
		if err := h.projects.Update(info); err != nil {
			writeStatus(w, http.StatusInternalServerError, "error registering project")
			return
		}
	}

	if err := h.onboard(r.Context(), info); err != nil {
		h.logger.Printf("[Onboard] Error onboarding %s: %v", info.RepoFullName, err)
		writeStatus(w, http.StatusInternalServerError, "error onboarding project")
		return
	}
	writeStatus(w, http.StatusOK, "project onboarded successfully")
}

// onboard clones the repository and summarizes the full source tree.
func (h *Handler) onboard(ctx context.Context, info project.Info) error {
	h.logger.Printf("[Onboard] Onboarding %s", info.RepoFullName)
	return h.updateUnderstanding(ctx, info, nil)
}
