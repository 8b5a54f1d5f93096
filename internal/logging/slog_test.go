// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { SetLogger(prev) })
	return &buf
}

func TestSlogBridgeForwardsToZerolog(t *testing.T) {
	buf := captureOutput(t)

	Slog().Info("service started", slog.String("service", "bureau-nyc"))

	out := buf.String()
	if !strings.Contains(out, "service started") {
		t.Errorf("message missing: %q", out)
	}
	if !strings.Contains(out, `"service":"bureau-nyc"`) {
		t.Errorf("attr missing: %q", out)
	}
	if !strings.Contains(out, `"level":"info"`) {
		t.Errorf("level missing: %q", out)
	}
}

func TestSlogBridgeLevels(t *testing.T) {
	buf := captureOutput(t)

	log := Slog()
	log.Warn("backoff")
	log.Error("failed")

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"level":"error"`) {
		t.Errorf("levels not mapped: %q", out)
	}
}

func TestSlogBridgeGroupsAndPersistentAttrs(t *testing.T) {
	buf := captureOutput(t)

	log := Slog().With(slog.String("supervisor", "citywatch")).WithGroup("restart")
	log.Info("service restarting", slog.Int("count", 3))

	out := buf.String()
	if !strings.Contains(out, `"supervisor":"citywatch"`) {
		t.Errorf("persistent attr missing: %q", out)
	}
	if !strings.Contains(out, `"restart.count":3`) {
		t.Errorf("group-prefixed attr missing: %q", out)
	}
}
