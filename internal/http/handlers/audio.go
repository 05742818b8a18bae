package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type audioRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
}

type audioResponse struct {
	AudioURL string `json:"audioUrl"`
}

// GenerateAudio synthesizes speech and returns it as a data URI so the
// browser can play it without another round trip.
func (a *App) GenerateAudio(w http.ResponseWriter, r *http.Request) {
	var req audioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		a.error(w, http.StatusBadRequest, "text is required")
		return
	}

	audio, err := a.Speech.Synthesize(r.Context(), req.Text, req.VoiceID)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	encoded := base64.StdEncoding.EncodeToString(audio.Data)
	a.json(w, http.StatusOK, audioResponse{
		AudioURL: fmt.Sprintf("data:%s;base64,%s", audio.ContentType, encoded),
	})
}
