package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ampli-network/ampli/internal/daemon"
)

// apiBase resolves the running engine's base URL from config.
func apiBase() string {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return "http://127.0.0.1:8420"
	}
	return fmt.Sprintf("http://%s:%d", cfg.API.Host, cfg.API.Port)
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// getJSON fetches path from the running engine and decodes into v.
func getJSON(path string, v any) error {
	resp, err := httpClient.Get(apiBase() + path)
	if err != nil {
		return fmt.Errorf("is the engine running? (ampli serve): %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return apiError(resp.StatusCode, body)
	}
	return json.Unmarshal(body, v)
}

// postJSON posts payload to path and decodes the response into v.
func postJSON(path string, headers map[string]string, payload, v any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, apiBase()+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("is the engine running? (ampli serve): %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return apiError(resp.StatusCode, body)
	}
	return json.Unmarshal(body, v)
}

// apiError unpacks the engine's error envelope.
func apiError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		return fmt.Errorf("%s (%d): %s", envelope.Error.Code, status, envelope.Error.Message)
	}
	return fmt.Errorf("engine returned %d", status)
}
