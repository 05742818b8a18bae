package handlers

import (
	"io"
	"net/http"
	"net/url"
)

// ProxyAudio streams hosted media back to the browser with a forced audio
// content type and a permissive CORS header, so the preview player can fetch
// files the storage host would otherwise refuse cross-origin.
func (a *App) ProxyAudio(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		a.error(w, http.StatusBadRequest, "missing url parameter")
		return
	}
	if parsed, err := url.Parse(target); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		a.error(w, http.StatusBadRequest, "invalid url parameter")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid url parameter")
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		a.Logger.Error().Err(err).Str("target", target).Msg("proxy fetch failed")
		a.error(w, http.StatusBadGateway, "proxy failed")
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		a.Logger.Error().Int("status", resp.StatusCode).Str("target", target).Msg("proxy upstream error")
		a.error(w, http.StatusBadGateway, "proxy failed")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		a.Logger.Warn().Err(err).Msg("proxy stream interrupted")
	}
}
