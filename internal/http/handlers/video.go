package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/providers/avatar"
)

type videoRequest struct {
	AudioURL string `json:"audioUrl"`
	ImageURL string `json:"imageUrl"`
}

type videoResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
	Message  string `json:"message,omitempty"`
}

// GenerateVideo hosts the synthesized audio (and the avatar image when it
// arrives inline), registers both with the avatar provider and submits the
// render. Without an avatar provider or image the hosted audio URL is the
// finished artifact.
func (a *App) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.AudioURL) == "" {
		a.error(w, http.StatusBadRequest, "audio data is required")
		return
	}

	ctx := r.Context()

	// The hosting adapter strips data URI prefixes, so the audio payload is
	// forwarded untouched.
	audioURL, err := a.Host.Upload(ctx, domain.Asset{
		Filename: fmt.Sprintf("audio-%s.mp3", uuid.NewString()),
		MIME:     "audio/mpeg",
		Data:     []byte(req.AudioURL),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	imageURL := req.ImageURL
	if strings.HasPrefix(imageURL, "data:") {
		hosted, err := a.Host.Upload(ctx, domain.Asset{
			Filename: fmt.Sprintf("avatar-%s.png", uuid.NewString()),
			MIME:     "image/png",
			Data:     []byte(imageURL),
		})
		if err != nil {
			a.Logger.Warn().Err(err).Msg("image hosting failed, continuing without avatar")
			imageURL = ""
		} else {
			imageURL = hosted
		}
	}

	if a.Avatar == nil || imageURL == "" {
		a.Logger.Info().Str("audio_url", audioURL).Msg("avatar unavailable, returning audio-only result")
		a.json(w, http.StatusOK, videoResponse{
			ID:       "audio_only_" + uuid.NewString(),
			Status:   "completed",
			VideoURL: audioURL,
		})
		return
	}

	photoID, err := a.Avatar.RegisterTalkingPhoto(ctx, imageURL)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	audioAssetID, err := a.Avatar.RegisterAudio(ctx, audioURL)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	handle, err := a.Avatar.SubmitVideo(ctx, avatar.VideoInput{
		TalkingPhotoID: photoID,
		AudioAssetID:   audioAssetID,
		Background:     a.Cfg.RenderBackground,
		Width:          a.Cfg.RenderWidth,
		Height:         a.Cfg.RenderHeight,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	a.Logger.Info().Str("job", string(handle)).Msg("video generation started")
	a.json(w, http.StatusOK, videoResponse{
		ID:      string(handle),
		Status:  "processing",
		Message: "Video generation started",
	})
}
