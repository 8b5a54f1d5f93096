// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package poller fetches recorded calls from the archived call-log API
// for feeds that have no live stream. One Poller covers every poll feed;
// it keeps a high-water mark per feed so each call is fetched once, and
// fail-stops after too many consecutive failures rather than hammering a
// broken upstream forever.
package poller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"github.com/thejerf/suture/v4"
	"golang.org/x/time/rate"

	"github.com/citywatch-project/citywatch/internal/cache"
	"github.com/citywatch-project/citywatch/internal/config"
	"github.com/citywatch-project/citywatch/internal/logging"
	"github.com/citywatch-project/citywatch/internal/metrics"
	"github.com/citywatch-project/citywatch/internal/models"
)

// ChunkSink receives downloaded call audio.
type ChunkSink func(ctx context.Context, chunk models.AudioChunk)

// callRecord is one entry in the call-log response.
type callRecord struct {
	ID        string  `json:"id"`
	Talkgroup string  `json:"talkgroup"`
	StartTime float64 `json:"startTime"`
	Duration  float64 `json:"duration"`
	AudioURL  string  `json:"audioUrl"`
}

type callLogResponse struct {
	Calls   []callRecord `json:"calls"`
	LastPos float64      `json:"lastPos"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Poller polls the call-log API on a fixed interval for every poll feed.
type Poller struct {
	cfg     config.PollerConfig
	feeds   []models.Feed
	sink    ChunkSink
	httpc   *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*callLogResponse]
	seen    *cache.DedupSet

	mu           sync.Mutex
	sessionToken string
	sessionExp   time.Time
	highWater    map[string]float64
	failures     int
}

// New builds the poller over every poll feed across all cities. The
// dedup set guards against the overlap window the high-water mark
// deliberately leaves.
func New(cfg config.PollerConfig, cities []config.CityConfig, seen *cache.DedupSet, sink ChunkSink) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Minute
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 5
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 4
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 30 * time.Second
	}

	p := &Poller{
		cfg:       cfg,
		sink:      sink,
		seen:      seen,
		httpc:     &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		highWater: make(map[string]float64),
	}
	p.breaker = gobreaker.NewCircuitBreaker[*callLogResponse](gobreaker.Settings{
		Name:    "call-log-api",
		Timeout: 2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})

	for _, city := range cities {
		for _, fc := range city.Feeds {
			if models.FeedKind(fc.Kind) != models.FeedKindPoll {
				continue
			}
			p.feeds = append(p.feeds, models.Feed{
				ID:          fc.ID,
				DisplayName: fc.DisplayName,
				City:        city.Name,
				Kind:        models.FeedKindPoll,
				Talkgroup:   fc.Talkgroup,
			})
		}
	}
	return p
}

// String names the poller in supervisor logs.
func (p *Poller) String() string { return "call-poller" }

// Serve polls until the context ends or the fail-stop trips. Implements
// suture.Service; the fail-stop returns ErrDoNotRestart so the
// supervisor retires the service instead of resurrecting a poller that
// will only fail again.
func (p *Poller) Serve(ctx context.Context) error {
	if len(p.feeds) == 0 {
		logging.Info().Msg("no poll feeds configured, poller idle")
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	logging.Info().Int("feeds", len(p.feeds)).Dur("interval", p.cfg.Interval).Msg("call poller started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.pollAll(ctx); err != nil {
				p.mu.Lock()
				p.failures++
				failures := p.failures
				p.mu.Unlock()
				logging.Warn().Err(err).Int("consecutive", failures).Msg("poll cycle failed")
				if failures >= p.cfg.MaxConsecutiveFailures {
					for _, f := range p.feeds {
						metrics.PollerDisabled.WithLabelValues(f.ID).Inc()
					}
					logging.Error().Int("failures", failures).Msg("call poller fail-stopped")
					return suture.ErrDoNotRestart
				}
				continue
			}
			p.mu.Lock()
			p.failures = 0
			p.mu.Unlock()
		}
	}
}

// pollAll runs one cycle over every feed. The first error aborts the
// cycle; per-call download problems are logged but do not count as
// cycle failures.
func (p *Poller) pollAll(ctx context.Context) error {
	for _, feed := range p.feeds {
		if err := p.pollFeed(ctx, feed); err != nil {
			metrics.PollerFailures.WithLabelValues(feed.ID).Inc()
			return fmt.Errorf("feed %s: %w", feed.ID, err)
		}
	}
	return nil
}

// pollFeed fetches new calls past the feed's high-water mark and pushes
// their audio downstream.
func (p *Poller) pollFeed(ctx context.Context, feed models.Feed) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := p.breaker.Execute(func() (*callLogResponse, error) {
		return p.fetchCalls(ctx, feed)
	})
	if err != nil {
		return err
	}

	for _, call := range resp.Calls {
		key := "call:" + call.ID
		if p.seen.Seen(key) {
			metrics.DedupDrops.WithLabelValues("call").Inc()
			continue
		}
		metrics.PollerCalls.WithLabelValues(feed.ID).Inc()
		if err := p.downloadCall(ctx, feed, call); err != nil {
			// Not remembered: the overlap window retries it next cycle.
			logging.Warn().Err(err).Str("feed", feed.ID).Str("call", call.ID).Msg("call download failed")
			continue
		}
		p.seen.Remember(key)
	}

	if resp.LastPos > 0 {
		p.mu.Lock()
		if resp.LastPos > p.highWater[feed.ID] {
			p.highWater[feed.ID] = resp.LastPos
		}
		p.mu.Unlock()
	}
	return nil
}

// fetchCalls queries the call-log API for one feed.
func (p *Poller) fetchCalls(ctx context.Context, feed models.Feed) (*callLogResponse, error) {
	p.mu.Lock()
	pos := p.highWater[feed.ID]
	p.mu.Unlock()

	q := url.Values{}
	q.Set("talkgroup", feed.Talkgroup)
	q.Set("pos", strconv.FormatFloat(pos, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/calls?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if err := p.authorize(ctx, req); err != nil {
		return nil, err
	}

	httpResp, err := p.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusUnauthorized {
		// Session token went stale early; drop it so the next cycle
		// re-authenticates.
		p.mu.Lock()
		p.sessionToken = ""
		p.mu.Unlock()
		return nil, fmt.Errorf("call log: session rejected")
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("call log: status %d", httpResp.StatusCode)
	}

	var out callLogResponse
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 4<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("call log: decode: %w", err)
	}
	return &out, nil
}

// fetchCallDetail fetches one call's full record, for listings that do
// not embed the audio URL.
func (p *Poller) fetchCallDetail(ctx context.Context, id string) (*callRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/calls/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if err := p.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("call detail: status %d", resp.StatusCode)
	}

	var out callRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("call detail: decode: %w", err)
	}
	return &out, nil
}

// downloadCall fetches one call's audio and hands it to the sink. When
// the listing omits the audio URL, the call detail endpoint resolves it.
func (p *Poller) downloadCall(ctx context.Context, feed models.Feed, call callRecord) error {
	dlCtx, cancel := context.WithTimeout(ctx, p.cfg.DownloadTimeout)
	defer cancel()

	audioURL := call.AudioURL
	if audioURL == "" {
		detail, err := p.fetchCallDetail(dlCtx, call.ID)
		if err != nil {
			return fmt.Errorf("resolve audio url: %w", err)
		}
		if detail.AudioURL == "" {
			return fmt.Errorf("call %s: no audio url in detail", call.ID)
		}
		audioURL = detail.AudioURL
	}

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, audioURL, nil)
	if err != nil {
		return err
	}
	if err := p.authorize(dlCtx, req); err != nil {
		return err
	}

	resp, err := p.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("audio status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return err
	}

	p.sink(ctx, models.AudioChunk{
		FeedID:     feed.ID,
		City:       feed.City,
		Data:       data,
		Duration:   time.Duration(call.Duration * float64(time.Second)),
		CapturedAt: time.Unix(int64(call.StartTime), 0),
	})
	return nil
}

// authorize attaches both credentials: the cached session token and a
// fresh single-use signed request token.
func (p *Poller) authorize(ctx context.Context, req *http.Request) error {
	session, err := p.session(ctx)
	if err != nil {
		return err
	}
	reqToken, err := p.requestToken()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+session)
	req.Header.Set("X-Request-Token", reqToken)
	return nil
}

// requestToken signs a short-lived HS256 token, regenerated per request.
func (p *Poller) requestToken() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": p.cfg.TokenIssuer,
		"iat": now.Unix(),
		"exp": now.Add(p.cfg.TokenTTL).Unix(),
		"jti": uuid.New().String(),
	})
	signed, err := token.SignedString([]byte(p.cfg.TokenSecret))
	if err != nil {
		return "", fmt.Errorf("sign request token: %w", err)
	}
	return signed, nil
}

// session returns the cached session token, logging in again when it is
// missing or within a minute of expiry.
func (p *Poller) session(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.sessionToken != "" && time.Until(p.sessionExp) > time.Minute {
		token := p.sessionToken
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	body, err := json.Marshal(map[string]string{
		"username": p.cfg.Username,
		"password": p.cfg.Password,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login: status %d", resp.StatusCode)
	}

	var lr loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&lr); err != nil {
		return "", fmt.Errorf("login: decode: %w", err)
	}
	if lr.Token == "" {
		return "", fmt.Errorf("login: empty token")
	}

	exp := time.Unix(lr.ExpiresAt, 0)
	p.mu.Lock()
	p.sessionToken = lr.Token
	p.sessionExp = exp
	p.mu.Unlock()
	logging.Debug().Time("expires", exp).Msg("call-log session refreshed")
	return lr.Token, nil
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
