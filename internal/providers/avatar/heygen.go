package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"server/internal/domain"
)

const (
	heygenDefaultTimeout = 60 * time.Second
	heygenProviderName   = "heygen"
)

// VideoInput describes one avatar video rendering request.
type VideoInput struct {
	TalkingPhotoID string
	AudioAssetID   string
	Background     string
	Width          int
	Height         int
}

// Client is the avatar-video capability: register assets, submit a render,
// observe the asynchronous job.
type Client interface {
	RegisterTalkingPhoto(ctx context.Context, imageURL string) (string, error)
	RegisterAudio(ctx context.Context, audioURL string) (string, error)
	SubmitVideo(ctx context.Context, input VideoInput) (domain.JobHandle, error)
	JobStatus(ctx context.Context, handle domain.JobHandle) (*domain.JobStatus, error)
}

// Options controls how the HeyGen client is configured. Uploads go to a
// separate host from the API proper.
type Options struct {
	APIKey        string
	APIBaseURL    string
	UploadBaseURL string
	HTTPClient    *http.Client
}

// HeyGen talks to the HeyGen talking-photo video APIs.
type HeyGen struct {
	apiKey     string
	apiBase    string
	uploadBase string
	client     *http.Client
}

type photoUploadResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TalkingPhotoID string `json:"talking_photo_id"`
	} `json:"data"`
}

type assetUploadResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		ID string `json:"id"`
	} `json:"data"`
}

type generateRequest struct {
	VideoInputs []videoInputPayload `json:"video_inputs"`
	Dimension   dimensionPayload    `json:"dimension"`
}

type videoInputPayload struct {
	Character  characterPayload  `json:"character"`
	Voice      voicePayload      `json:"voice"`
	Background backgroundPayload `json:"background"`
}

type characterPayload struct {
	Type           string `json:"type"`
	TalkingPhotoID string `json:"talking_photo_id"`
}

type voicePayload struct {
	Type         string `json:"type"`
	AudioAssetID string `json:"audio_asset_id"`
}

type backgroundPayload struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type dimensionPayload struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type generateResponse struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Data    struct {
		VideoID string `json:"video_id"`
	} `json:"data"`
}

// statusEnvelope accepts both the nested and the flat status shapes the
// provider has been observed to return.
type statusEnvelope struct {
	Status   string          `json:"status"`
	VideoURL string          `json:"video_url"`
	Error    json.RawMessage `json:"error"`
	Data     struct {
		Status   string          `json:"status"`
		VideoURL string          `json:"video_url"`
		Error    json.RawMessage `json:"error"`
	} `json:"data"`
}

// New builds a HeyGen client.
func New(opts Options) *HeyGen {
	apiBase := strings.TrimRight(opts.APIBaseURL, "/")
	if apiBase == "" {
		apiBase = "https://api.heygen.com"
	}
	uploadBase := strings.TrimRight(opts.UploadBaseURL, "/")
	if uploadBase == "" {
		uploadBase = "https://upload.heygen.com"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: heygenDefaultTimeout}
	}
	return &HeyGen{
		apiKey:     strings.TrimSpace(opts.APIKey),
		apiBase:    apiBase,
		uploadBase: uploadBase,
		client:     client,
	}
}

// Configured reports whether the client has an API key. The orchestrator
// degrades to audio-only output when it does not.
func (h *HeyGen) Configured() bool {
	return h.apiKey != ""
}

// RegisterTalkingPhoto downloads the hosted image and re-uploads it as a
// talking photo, returning the provider-scoped photo id.
func (h *HeyGen) RegisterTalkingPhoto(ctx context.Context, imageURL string) (string, error) {
	data, contentType, err := h.fetchAsset(ctx, imageURL, "image/png")
	if err != nil {
		return "", err
	}

	resp, raw, err := h.uploadBinary(ctx, h.uploadBase+"/v1/talking_photo", contentType, data)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", uploadError(resp.StatusCode, raw)
	}

	var out photoUploadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", domain.NewProviderError(heygenProviderName, resp.StatusCode, "malformed talking photo response")
	}
	if out.Data.TalkingPhotoID == "" {
		return "", domain.NewProviderError(heygenProviderName, resp.StatusCode, coalesce(out.Message, "missing talking_photo_id"))
	}
	return out.Data.TalkingPhotoID, nil
}

// RegisterAudio downloads the hosted audio and re-uploads it as a provider
// asset. Using an asset id instead of the hosted URL avoids the provider
// being blocked from fetching shared-drive links.
func (h *HeyGen) RegisterAudio(ctx context.Context, audioURL string) (string, error) {
	data, contentType, err := h.fetchAsset(ctx, audioURL, "audio/mpeg")
	if err != nil {
		return "", err
	}

	resp, raw, err := h.uploadBinary(ctx, h.uploadBase+"/v1/asset", contentType, data)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", uploadError(resp.StatusCode, raw)
	}

	var out assetUploadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", domain.NewProviderError(heygenProviderName, resp.StatusCode, "malformed asset response")
	}
	if out.Data.ID == "" {
		return "", domain.NewProviderError(heygenProviderName, resp.StatusCode, coalesce(out.Message, "missing asset id"))
	}
	return out.Data.ID, nil
}

// SubmitVideo starts an asynchronous render and returns its job handle.
func (h *HeyGen) SubmitVideo(ctx context.Context, input VideoInput) (domain.JobHandle, error) {
	if input.TalkingPhotoID == "" || input.AudioAssetID == "" {
		return "", fmt.Errorf("%w: talking photo and audio asset ids are required", domain.ErrInvalidInput)
	}
	if h.apiKey == "" {
		return "", fmt.Errorf("%w: heygen api key missing", domain.ErrNotConfigured)
	}

	payload := generateRequest{
		VideoInputs: []videoInputPayload{{
			Character: characterPayload{Type: "talking_photo", TalkingPhotoID: input.TalkingPhotoID},
			Voice:     voicePayload{Type: "audio", AudioAssetID: input.AudioAssetID},
			Background: backgroundPayload{
				Type:  "color",
				Value: coalesce(input.Background, "#000000"),
			},
		}},
		Dimension: dimensionPayload{
			Width:  orDefault(input.Width, 1280),
			Height: orDefault(input.Height, 720),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.apiBase+"/v2/video/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Api-Key", h.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= 300 {
			return "", domain.NewProviderError(heygenProviderName, resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", domain.NewProviderError(heygenProviderName, resp.StatusCode, coalesce(out.Message, rawMessage(out.Error), string(raw)))
	}
	if out.Data.VideoID == "" {
		return "", domain.NewProviderError(heygenProviderName, resp.StatusCode, coalesce(out.Message, rawMessage(out.Error), "missing video_id"))
	}
	return domain.JobHandle(out.Data.VideoID), nil
}

// JobStatus fetches one observation of the render job. A provider "error"
// state is reported as JobFailed.
func (h *HeyGen) JobStatus(ctx context.Context, handle domain.JobHandle) (*domain.JobStatus, error) {
	if handle == "" {
		return nil, fmt.Errorf("%w: job handle is required", domain.ErrInvalidInput)
	}
	if h.apiKey == "" {
		return nil, fmt.Errorf("%w: heygen api key missing", domain.ErrNotConfigured)
	}

	endpoint := fmt.Sprintf("%s/v1/video_status.get?video_id=%s", h.apiBase, url.QueryEscape(string(handle)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", h.apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, domain.NewProviderError(heygenProviderName, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var envelope statusEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	return normalizeStatus(envelope), nil
}

func normalizeStatus(envelope statusEnvelope) *domain.JobStatus {
	status := coalesce(envelope.Data.Status, envelope.Status)
	videoURL := coalesce(envelope.Data.VideoURL, envelope.VideoURL)
	reason := coalesce(rawMessage(envelope.Data.Error), rawMessage(envelope.Error))

	switch strings.ToLower(status) {
	case "completed":
		return &domain.JobStatus{State: domain.JobCompleted, VideoURL: videoURL}
	case "failed", "error":
		if reason == "" {
			reason = "video generation failed at provider"
		}
		return &domain.JobStatus{State: domain.JobFailed, Reason: reason}
	case "processing", "waiting":
		return &domain.JobStatus{State: domain.JobProcessing}
	default:
		return &domain.JobStatus{State: domain.JobPending}
	}
}

func (h *HeyGen) fetchAsset(ctx context.Context, assetURL, fallbackType string) ([]byte, string, error) {
	if strings.TrimSpace(assetURL) == "" {
		return nil, "", fmt.Errorf("%w: asset url is required", domain.ErrInvalidInput)
	}
	if h.apiKey == "" {
		return nil, "", fmt.Errorf("%w: heygen api key missing", domain.ErrNotConfigured)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, "", domain.NewProviderError(heygenProviderName, resp.StatusCode, fmt.Sprintf("failed to download asset %s", assetURL))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = fallbackType
	}
	return data, contentType, nil
}

func (h *HeyGen) uploadBinary(ctx context.Context, endpoint, contentType string, data []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("X-Api-Key", h.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, raw, nil
}

// uploadError prefers the structured message inside the provider's error body
// over the raw text.
func uploadError(statusCode int, raw []byte) error {
	var parsed struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if msg := coalesce(parsed.Message, parsed.Error.Message); msg != "" {
			return domain.NewProviderError(heygenProviderName, statusCode, msg)
		}
	}
	return domain.NewProviderError(heygenProviderName, statusCode, strings.TrimSpace(string(raw)))
}

// rawMessage flattens a provider error field that may be a string, an object
// with a message, or absent.
func rawMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asObject struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil {
		if msg := coalesce(asObject.Message, asObject.Detail); msg != "" {
			return msg
		}
	}
	return string(raw)
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

var _ Client = (*HeyGen)(nil)
