// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package ingest owns the live audio side: one StreamConnector per
// stream feed, sharing a fixed pool of connection slots so the process
// never holds more than the configured number of open streams.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/citywatch-project/citywatch/internal/config"
	"github.com/citywatch-project/citywatch/internal/logging"
	"github.com/citywatch-project/citywatch/internal/metrics"
	"github.com/citywatch-project/citywatch/internal/models"
)

// ConnState is a connector's lifecycle state, exposed on the query
// surface.
type ConnState string

const (
	StateWaiting      ConnState = "waiting"
	StateConnecting   ConnState = "connecting"
	StateStreaming    ConnState = "streaming"
	StateSilent       ConnState = "silent"
	StateReconnecting ConnState = "reconnecting"
	StateEnded        ConnState = "ended"
	StateError        ConnState = "error"
)

// ChunkSink receives flushed audio. The returned flag asks the connector
// to drop the current connection and reconnect (looping audio).
type ChunkSink func(ctx context.Context, chunk models.AudioChunk) (drop bool)

// FeedStatus is one row of the feed status query.
type FeedStatus struct {
	Feed       models.Feed `json:"feed"`
	State      ConnState   `json:"state"`
	LastDataAt time.Time   `json:"last_data_at,omitempty"`
	Reconnects int64       `json:"reconnects"`
}

// StreamConnector maintains one streaming connection through its full
// lifecycle: acquire a slot, connect, read until silence or error,
// release, back off, repeat. It never gives up on a feed; persistent
// failures just cycle through the backoff.
type StreamConnector struct {
	feed  models.Feed
	cfg   config.StreamConfig
	sink  ChunkSink
	slots chan struct{}
	httpc *http.Client

	mu         sync.Mutex
	state      ConnState
	lastDataAt time.Time
	reconnects int64
}

// NewStreamConnector builds a connector for one feed. slots is the
// shared connection-slot pool; pass the same channel to every connector.
func NewStreamConnector(feed models.Feed, cfg config.StreamConfig, sink ChunkSink, slots chan struct{}) *StreamConnector {
	if cfg.LivenessInterval <= 0 {
		cfg.LivenessInterval = 30 * time.Second
	}
	if cfg.SilenceThreshold <= 0 {
		cfg.SilenceThreshold = 90 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 10 * time.Second
	}
	if cfg.ChunkDuration <= 0 {
		cfg.ChunkDuration = 15 * time.Second
	}
	if cfg.BytesPerSecond <= 0 {
		cfg.BytesPerSecond = 16000
	}
	return &StreamConnector{
		feed:  feed,
		cfg:   cfg,
		sink:  sink,
		slots: slots,
		state: StateWaiting,
		// No overall timeout: the body is read for hours. Dial and TLS
		// handshake bounds come from the default transport.
		httpc: &http.Client{},
	}
}

// String names the connector in supervisor logs.
func (c *StreamConnector) String() string { return "stream-" + c.feed.ID }

// Status snapshots the connector for the query surface.
func (c *StreamConnector) Status() FeedStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return FeedStatus{
		Feed:       c.feed,
		State:      c.state,
		LastDataAt: c.lastDataAt,
		Reconnects: c.reconnects,
	}
}

func (c *StreamConnector) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *StreamConnector) touch(t time.Time) {
	c.mu.Lock()
	c.lastDataAt = t
	c.mu.Unlock()
}

func (c *StreamConnector) lastData() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastDataAt
}

// Serve runs the connect/read/reconnect cycle until the context ends.
// Implements suture.Service.
func (c *StreamConnector) Serve(ctx context.Context) error {
	for {
		c.setState(StateWaiting)
		select {
		case c.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		cause := c.session(ctx)
		<-c.slots

		if ctx.Err() != nil {
			c.setState(StateEnded)
			return ctx.Err()
		}

		c.mu.Lock()
		c.reconnects++
		c.mu.Unlock()
		metrics.StreamReconnects.WithLabelValues(c.feed.ID, cause).Inc()
		logging.Info().Str("feed", c.feed.ID).Str("cause", cause).
			Dur("delay", c.cfg.ReconnectDelay).Msg("stream reconnecting")

		c.setState(StateReconnecting)
		select {
		case <-time.After(c.cfg.ReconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// session runs one connection from dial to disconnect and returns the
// reconnect cause. The silence watchdog cancels the session context,
// which unblocks the body read.
func (c *StreamConnector) session(ctx context.Context) (cause string) {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.setState(StateConnecting)
	resp, err := c.connect(sessCtx)
	if err != nil {
		c.setState(StateError)
		logging.Warn().Err(err).Str("feed", c.feed.ID).Msg("stream connect failed")
		return "connect_error"
	}
	defer resp.Body.Close()

	c.setState(StateStreaming)
	c.touch(time.Now())
	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()
	logging.Info().Str("feed", c.feed.ID).Str("city", c.feed.City).Msg("stream connected")

	silent := make(chan struct{})
	go c.watchdog(sessCtx, cancel, silent)

	cause = c.readLoop(sessCtx, resp.Body, cancel)
	select {
	case <-silent:
		c.setState(StateSilent)
		return "silence"
	default:
		return cause
	}
}

// watchdog declares the connection silent when no data arrived within
// the threshold, then cancels the session.
func (c *StreamConnector) watchdog(ctx context.Context, cancel context.CancelFunc, silent chan<- struct{}) {
	ticker := time.NewTicker(c.cfg.LivenessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.Sub(c.lastData()) > c.cfg.SilenceThreshold {
				logging.Warn().Str("feed", c.feed.ID).
					Dur("threshold", c.cfg.SilenceThreshold).Msg("stream silent")
				close(silent)
				cancel()
				return
			}
		}
	}
}

// readLoop consumes the body, buffering bytes and flushing a chunk each
// time the buffer covers the configured duration. Returns the reconnect
// cause.
func (c *StreamConnector) readLoop(ctx context.Context, body io.Reader, cancel context.CancelFunc) string {
	chunkBytes := int(c.cfg.ChunkDuration.Seconds()) * c.cfg.BytesPerSecond
	buf := make([]byte, 0, chunkBytes)
	read := make([]byte, 4096)

	for {
		n, err := body.Read(read)
		if n > 0 {
			c.touch(time.Now())
			buf = append(buf, read[:n]...)
			if len(buf) >= chunkBytes {
				if drop := c.flush(ctx, buf); drop {
					cancel()
					return "looping_audio"
				}
				buf = buf[:0]
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return "canceled"
			}
			if err == io.EOF {
				logging.Info().Str("feed", c.feed.ID).Msg("stream ended")
				return "ended"
			}
			logging.Warn().Err(err).Str("feed", c.feed.ID).Msg("stream read error")
			return "read_error"
		}
	}
}

// flush hands one chunk to the sink.
func (c *StreamConnector) flush(ctx context.Context, buf []byte) bool {
	data := make([]byte, len(buf))
	copy(data, buf)
	metrics.StreamChunksFlushed.WithLabelValues(c.feed.ID).Inc()
	return c.sink(ctx, models.AudioChunk{
		FeedID:     c.feed.ID,
		City:       c.feed.City,
		Data:       data,
		Duration:   c.cfg.ChunkDuration,
		CapturedAt: time.Now(),
	})
}

// connect opens the streaming request.
func (c *StreamConnector) connect(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("stream request: %w", err)
	}
	req.Header.Set("User-Agent", "citywatch/1.0")
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream status %d", resp.StatusCode)
	}
	return resp, nil
}
