package handlers

import (
	"net/http"
	"time"
)

const maxVoiceSampleBytes = 25 << 20

type voiceCloneResponse struct {
	VoiceID string `json:"voice_id"`
}

// CloneVoice enrolls a recorded audio sample and returns the provider voice
// id for use in later generation requests.
func (a *App) CloneVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxVoiceSampleBytes); err != nil {
		a.error(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		a.error(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	name := "User Clone " + time.Now().Format("2006-01-02 15:04:05")
	voiceID, err := a.Enroller.CloneVoice(r.Context(), name, header.Filename, file)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.Logger.Info().Str("voice_id", voiceID).Msg("voice cloned")
	a.json(w, http.StatusOK, voiceCloneResponse{VoiceID: voiceID})
}
