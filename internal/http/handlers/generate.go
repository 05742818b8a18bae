package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gorilla/websocket"

	"server/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 20,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var imageDataURI = regexp.MustCompile(`^data:(image/[\w+.-]+);base64,(.+)$`)

type generateMessage struct {
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl"`
	VoiceID  string `json:"voiceId"`
}

type progressMessage struct {
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Generate runs the whole pipeline over a websocket: the client sends one
// request message, the server pushes a progress event per stage transition
// and closes after the terminal event.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	var msg generateMessage
	if err := conn.ReadJSON(&msg); err != nil {
		a.Logger.Warn().Err(err).Msg("invalid generate message")
		return
	}

	req := domain.GenerationRequest{Text: msg.Text, VoiceID: msg.VoiceID}
	if m := imageDataURI.FindStringSubmatch(msg.ImageURL); m != nil {
		data, err := base64.StdEncoding.DecodeString(m[2])
		if err != nil {
			_ = conn.WriteJSON(progressMessage{Stage: string(domain.StageError), Error: "invalid image data"})
			return
		}
		req.ImageMIME = m[1]
		req.ImageData = data
	} else if strings.HasPrefix(msg.ImageURL, "http") {
		req.ImageURL = msg.ImageURL
	}

	// The orchestrator is the single writer on this connection for the rest
	// of the session, so pushing from the listener is safe.
	listener := func(event domain.ProgressEvent) {
		out := progressMessage{Stage: string(event.Stage), Progress: event.Progress, VideoURL: event.ArtifactURL}
		if event.Err != nil {
			if errors.Is(event.Err, domain.ErrNotConfigured) {
				out.Error = "service configuration error"
			} else {
				out.Error = event.Err.Error()
			}
		}
		if err := conn.WriteJSON(out); err != nil {
			a.Logger.Warn().Err(err).Msg("progress push failed")
		}
	}

	if _, err := a.Orchestrator.Run(r.Context(), req, listener); err != nil {
		// The terminal error event already went out through the listener.
		return
	}
}
