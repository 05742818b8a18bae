package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"server/internal/domain"
)

type statusRequest struct {
	VideoID string `json:"video_id"`
}

type statusPayload struct {
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// VideoStatus reports one observation of a render job in the nested envelope
// the browser-side poll loop expects.
func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.VideoID) == "" {
		a.error(w, http.StatusBadRequest, "video_id is required")
		return
	}
	if a.Avatar == nil {
		a.error(w, http.StatusInternalServerError, "service configuration error")
		return
	}

	status, err := a.Avatar.JobStatus(r.Context(), domain.JobHandle(req.VideoID))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"data": statusPayload{
			Status:   string(status.State),
			VideoURL: status.VideoURL,
			Error:    status.Reason,
		},
	})
}
