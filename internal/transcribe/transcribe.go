// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package transcribe is the gateway to the external speech-to-text
// collaborator. Input is raw audio bytes plus a domain vocabulary hint;
// output is plain text, possibly empty when the service hears nothing.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/citywatch-project/citywatch/internal/config"
)

// Transcriber converts one audio chunk into text. Implementations must
// honor context cancellation; an empty string with nil error means the
// service produced no speech.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, vocabulary []string) (string, error)
}

// Client is the HTTP implementation against the configured service.
type Client struct {
	cfg        config.TranscriptionConfig
	httpClient *http.Client
}

// NewClient builds the speech-to-text client.
func NewClient(cfg config.TranscriptionConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// transcriptionResponse is the service's reply envelope.
type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the audio as multipart form data with the
// vocabulary hint and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, vocabulary []string) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("audio", "chunk.mp3")
	if err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	if len(vocabulary) > 0 {
		if err := form.WriteField("hints", strings.Join(vocabulary, ", ")); err != nil {
			return "", fmt.Errorf("write hints: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for connection reuse
		return "", fmt.Errorf("transcription service returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var tr transcriptionResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return strings.TrimSpace(tr.Text), nil
}
