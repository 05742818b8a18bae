package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

type summaryRequest struct {
	Text string `json:"text"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

// Summarize turns raw text into a short spoken script.
func (a *App) Summarize(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		a.error(w, http.StatusBadRequest, "text is required")
		return
	}

	script, err := a.Summarizer.Summarize(r.Context(), req.Text)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, summaryResponse{Summary: script})
}
