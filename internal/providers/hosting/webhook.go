package hosting

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"server/internal/domain"
)

const (
	webhookDefaultTimeout = 60 * time.Second
	webhookProviderName   = "asset-host"
)

// dataURIPrefix matches the data: URI header on base64 payloads pasted
// through from the browser.
var dataURIPrefix = regexp.MustCompile(`^data:[\w/+.-]+;base64,`)

// Host exchanges a transient binary asset for a publicly dereferenceable URL.
type Host interface {
	Upload(ctx context.Context, asset domain.Asset) (string, error)
}

// Options controls how the webhook host is configured.
type Options struct {
	WebhookURL string
	HTTPClient *http.Client
}

// Webhook uploads assets through a workflow-automation webhook that drops
// them into shared storage and answers with the public link.
type Webhook struct {
	url    string
	client *http.Client
}

type uploadRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type uploadResponse struct {
	WebContentLink string `json:"webContentLink"`
}

// New builds a webhook host.
func New(opts Options) *Webhook {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: webhookDefaultTimeout}
	}
	return &Webhook{url: strings.TrimSpace(opts.WebhookURL), client: client}
}

// Upload posts the asset as base64 JSON and returns the hosted URL. A
// response without a usable link is an ErrHostingFailed; callers treat that
// as fatal for audio and advisory for images.
func (h *Webhook) Upload(ctx context.Context, asset domain.Asset) (string, error) {
	if len(asset.Data) == 0 {
		return "", fmt.Errorf("%w: asset data is required", domain.ErrInvalidInput)
	}
	if h.url == "" {
		return "", fmt.Errorf("%w: asset webhook url missing", domain.ErrNotConfigured)
	}

	payload := uploadRequest{
		Filename: asset.Filename,
		MimeType: asset.MIME,
		Data:     encodePayload(asset.Data),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrHostingFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %s returned http %d", domain.ErrHostingFailed, webhookProviderName, resp.StatusCode)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: malformed response", domain.ErrHostingFailed)
	}
	link := strings.TrimSpace(out.WebContentLink)
	if link == "" {
		return "", fmt.Errorf("%w: no link returned", domain.ErrHostingFailed)
	}
	return link, nil
}

// encodePayload base64-encodes raw bytes. Payloads that are already base64
// data URIs pass through with the prefix stripped.
func encodePayload(data []byte) string {
	if dataURIPrefix.Match(data) {
		return string(dataURIPrefix.ReplaceAll(data, nil))
	}
	return base64.StdEncoding.EncodeToString(data)
}

var _ Host = (*Webhook)(nil)
