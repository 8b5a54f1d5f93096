// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package transcribe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/citywatch-project/citywatch/internal/config"
)

func TestTranscribeUploadsFormAndReturnsText(t *testing.T) {
	var gotAudio []byte
	var gotHints, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		gotHints = r.FormValue("hints")
		f, _, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		gotAudio, _ = io.ReadAll(f)
		w.Write([]byte(`{"text": "  robbery in progress at 125th and Lenox  "}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.TranscriptionConfig{URL: srv.URL, APIKey: "stt-key"})

	text, err := c.Transcribe(context.Background(), []byte("fake-audio"), []string{"NYPD", "Lenox"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "robbery in progress at 125th and Lenox" {
		t.Errorf("text = %q (whitespace not trimmed?)", text)
	}
	if string(gotAudio) != "fake-audio" {
		t.Errorf("uploaded audio = %q", gotAudio)
	}
	if gotHints != "NYPD, Lenox" {
		t.Errorf("hints = %q", gotHints)
	}
	if gotAuth != "Bearer stt-key" {
		t.Errorf("authorization = %q", gotAuth)
	}
}

func TestTranscribeEmptyAudioSkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent for empty audio")
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.TranscriptionConfig{URL: srv.URL})
	text, err := c.Transcribe(context.Background(), nil, nil)
	if err != nil || text != "" {
		t.Errorf("got %q, %v; want empty, nil", text, err)
	}
}

func TestTranscribeServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.TranscriptionConfig{URL: srv.URL})
	if _, err := c.Transcribe(context.Background(), []byte("x"), nil); err == nil {
		t.Fatal("server error not surfaced")
	}
}

func TestTranscribeEmptySpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text": ""}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.TranscriptionConfig{URL: srv.URL})
	text, err := c.Transcribe(context.Background(), []byte("x"), nil)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
}
