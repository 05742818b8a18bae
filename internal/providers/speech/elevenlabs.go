package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"server/internal/domain"
)

const (
	elevenDefaultTimeout = 60 * time.Second
	elevenDefaultVoice   = "21m00Tcm4TlvDq8ikWAM"
	elevenModelID        = "eleven_monolingual_v1"
	elevenProviderName   = "elevenlabs"
)

// Audio is the normalized synthesis result: raw bytes plus the content type
// the provider declared for them.
type Audio struct {
	Data        []byte
	ContentType string
}

// Synthesizer converts script text into spoken audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (*Audio, error)
}

// Enroller registers a voice sample and returns the provider's voice id.
type Enroller interface {
	CloneVoice(ctx context.Context, name, filename string, sample io.Reader) (string, error)
}

// Options controls how the ElevenLabs client is configured.
type Options struct {
	APIKey       string
	BaseURL      string
	DefaultVoice string
	HTTPClient   *http.Client
}

// ElevenLabs talks to the ElevenLabs text-to-speech and voice APIs.
type ElevenLabs struct {
	apiKey       string
	baseURL      string
	defaultVoice string
	client       *http.Client
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenError struct {
	Detail any    `json:"detail"`
	Error  string `json:"error"`
}

type cloneResponse struct {
	VoiceID string `json:"voice_id"`
}

// New builds an ElevenLabs client.
func New(opts Options) *ElevenLabs {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	voice := strings.TrimSpace(opts.DefaultVoice)
	if voice == "" {
		voice = elevenDefaultVoice
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: elevenDefaultTimeout}
	}
	return &ElevenLabs{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		defaultVoice: voice,
		client:       client,
	}
}

// Synthesize renders text with the given voice. An empty voiceID resolves to
// the configured default voice.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, voiceID string) (*Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrInvalidInput)
	}
	if e.apiKey == "" {
		return nil, fmt.Errorf("%w: elevenlabs api key missing", domain.ErrNotConfigured)
	}
	if voiceID = strings.TrimSpace(voiceID); voiceID == "" {
		voiceID = e.defaultVoice
	}

	payload := synthesizeRequest{
		Text:    text,
		ModelID: elevenModelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", e.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return nil, providerErrorFromBody(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &Audio{Data: data, ContentType: contentType}, nil
}

// CloneVoice submits an audio sample to /v1/voices/add and returns the new
// voice id. Sample length is not validated locally; the provider decides
// whether the recording is usable.
func (e *ElevenLabs) CloneVoice(ctx context.Context, name, filename string, sample io.Reader) (string, error) {
	if sample == nil {
		return "", fmt.Errorf("%w: audio sample is required", domain.ErrInvalidInput)
	}
	if e.apiKey == "" {
		return "", fmt.Errorf("%w: elevenlabs api key missing", domain.ErrNotConfigured)
	}
	if name = strings.TrimSpace(name); name == "" {
		name = "User Clone " + time.Now().Format(time.RFC3339)
	}
	if filename = strings.TrimSpace(filename); filename == "" {
		filename = "recording.webm"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("name", name); err != nil {
		return "", err
	}
	if err := mw.WriteField("description", "Cloned from user recording"); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("files", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, sample); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/voices/add", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return "", providerErrorFromBody(resp)
	}

	var out cloneResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.VoiceID == "" {
		return "", domain.NewProviderError(elevenProviderName, resp.StatusCode, "missing voice_id")
	}
	return out.VoiceID, nil
}

func providerErrorFromBody(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	var parsed elevenError
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Error != "" {
			return domain.NewProviderError(elevenProviderName, resp.StatusCode, parsed.Error)
		}
		if detail := formatDetail(parsed.Detail); detail != "" {
			return domain.NewProviderError(elevenProviderName, resp.StatusCode, detail)
		}
	}
	message := strings.TrimSpace(string(raw))
	return domain.NewProviderError(elevenProviderName, resp.StatusCode, message)
}

// formatDetail flattens the provider's detail field, which may be a plain
// string or a structured object.
func formatDetail(detail any) string {
	switch v := detail.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return ""
	}
	return string(raw)
}

var (
	_ Synthesizer = (*ElevenLabs)(nil)
	_ Enroller    = (*ElevenLabs)(nil)
)
