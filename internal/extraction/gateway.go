// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/citywatch-project/citywatch/internal/geo"
	"github.com/citywatch-project/citywatch/internal/logging"
	"github.com/citywatch-project/citywatch/internal/metrics"
	"github.com/citywatch-project/citywatch/internal/models"
)

// Completer is the one capability the gateway needs from the service
// client. Tests substitute a canned implementation.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Gateway renders city-specific prompts, calls the understanding
// service, and parses structured answers out of free-form responses.
type Gateway struct {
	client Completer
}

// NewGateway wraps a service client.
func NewGateway(client Completer) *Gateway {
	return &Gateway{client: client}
}

// ExtractIncident sends a transcript plus the city profile and returns a
// tagged result. Every failure path degrades: network and service errors
// are Rejected, an unparseable payload is ParseError. Nothing here
// crashes the pipeline.
func (g *Gateway) ExtractIncident(ctx context.Context, transcript string, profile *geo.CityProfile) Result {
	start := time.Now()
	cityName := profileName(profile)

	text, err := g.client.Complete(ctx, incidentPrompt(transcript, profile), 0)
	if err != nil {
		metrics.ObserveExtraction(cityName, "incident", "failure", start)
		logging.Warn().Err(err).Str("city", cityName).Msg("extraction call failed")
		return Result{Kind: Rejected, Reason: fmt.Sprintf("extraction failed: %v", err)}
	}

	var candidate IncidentCandidate
	if err := extractJSONBlock(text, &candidate); err != nil {
		metrics.ObserveExtraction(cityName, "incident", "parse_error", start)
		return Result{Kind: ParseError, Reason: err.Error()}
	}

	if !candidate.HasIncident {
		metrics.ObserveExtraction(cityName, "incident", "rejected", start)
		return Result{Kind: Rejected, Reason: "no incident reported"}
	}

	// Backfill the region from the precinct table when the service
	// reports a precinct without naming the borough.
	if candidate.Region == "" && candidate.Precinct != "" {
		candidate.Region = profile.BoroughForPrecinct(candidate.Precinct)
	}

	metrics.ObserveExtraction(cityName, "incident", "accepted", start)
	return Result{Kind: Accepted, Candidate: candidate}
}

// TacticalAnalysis asks for a pursuit assessment seeded with the city's
// street topology, capped at tokenCap tokens.
func (g *Gateway) TacticalAnalysis(ctx context.Context, inc *models.Incident, profile *geo.CityProfile, tokenCap int) (string, error) {
	start := time.Now()
	cityName := profileName(profile)

	prompt := fmt.Sprintf(
		"Active pursuit in %s. Street context: %s\n\nIncident: %s at %s (%s).\n"+
			"Give a terse tactical read: likely direction of travel, chokepoints, containment options.",
		displayName(profile), streetContext(profile), inc.Summary, inc.Location, inc.Borough,
	)

	text, err := g.client.Complete(ctx, prompt, tokenCap)
	if err != nil {
		metrics.ObserveExtraction(cityName, "pursuit", "failure", start)
		return "", fmt.Errorf("tactical analysis: %w", err)
	}
	metrics.ObserveExtraction(cityName, "pursuit", "accepted", start)
	return strings.TrimSpace(text), nil
}

// ContextNote asks for a short historian note linking an incident to
// prior activity at the same location.
func (g *Gateway) ContextNote(ctx context.Context, inc *models.Incident, priorCount int, related []models.Incident, profile *geo.CityProfile) (string, error) {
	start := time.Now()
	cityName := profileName(profile)

	var b strings.Builder
	fmt.Fprintf(&b, "New incident: %s at %s (%s). This location has %d prior incidents on record.\n",
		inc.Summary, inc.Location, inc.Borough, priorCount)
	if len(related) > 0 {
		b.WriteString("Related recent incidents:\n")
		for _, r := range related {
			fmt.Fprintf(&b, "- #%d %s: %s\n", r.ID, r.Type, r.Summary)
		}
	}
	b.WriteString("Write one short contextual note for the dispatcher. No preamble.")

	text, err := g.client.Complete(ctx, b.String(), 150)
	if err != nil {
		metrics.ObserveExtraction(cityName, "historian", "failure", start)
		return "", fmt.Errorf("context note: %w", err)
	}
	metrics.ObserveExtraction(cityName, "historian", "accepted", start)
	return strings.TrimSpace(text), nil
}

// JudgePattern asks for a structured pattern judgment over a candidate
// cluster of incidents.
func (g *Gateway) JudgePattern(ctx context.Context, incidents []models.Incident, profile *geo.CityProfile) (*PatternVerdict, error) {
	start := time.Now()
	cityName := profileName(profile)

	var b strings.Builder
	fmt.Fprintf(&b, "Incidents from %s that may form a pattern:\n", displayName(profile))
	for _, inc := range incidents {
		fmt.Fprintf(&b, "- #%d [%s] %s at %s (%s), %s\n",
			inc.ID, inc.CreatedAt.Format(time.RFC3339), inc.Type, inc.Location, inc.Borough, inc.Summary)
	}
	b.WriteString("\nRespond with JSON: {\"patternDetected\": bool, \"name\": string, " +
		"\"connections\": [string], \"linkedIds\": [number], \"confidence\": number, " +
		"\"prediction\": {\"location\": string, \"region\": string, \"incidentType\": string, " +
		"\"windowMinutes\": number, \"confidence\": number, \"reasoning\": string} or null}")

	text, err := g.client.Complete(ctx, b.String(), 400)
	if err != nil {
		metrics.ObserveExtraction(cityName, "pattern", "failure", start)
		return nil, fmt.Errorf("pattern judgment: %w", err)
	}

	var verdict PatternVerdict
	if err := extractJSONBlock(text, &verdict); err != nil {
		metrics.ObserveExtraction(cityName, "pattern", "parse_error", start)
		return nil, fmt.Errorf("pattern judgment: %w", err)
	}

	metrics.ObserveExtraction(cityName, "pattern", "accepted", start)
	return &verdict, nil
}

// Forecasts asks for 2-3 specific forecasts given the city's current
// hotspots. The predictor's own rolling accuracy is included so the
// service can self-calibrate confidence.
func (g *Gateway) Forecasts(ctx context.Context, hotspots []models.Hotspot, accuracy float64, profile *geo.CityProfile) ([]Forecast, error) {
	start := time.Now()
	cityName := profileName(profile)

	var b strings.Builder
	fmt.Fprintf(&b, "Current incident hotspots in %s (location: rolling count):\n", displayName(profile))
	for _, h := range hotspots {
		fmt.Fprintf(&b, "- %s (%s): %d\n", h.LocationKey, h.Borough, h.Count)
	}
	fmt.Fprintf(&b, "\nYour historical forecast accuracy is %.0f%%; calibrate confidence accordingly.\n", accuracy*100)
	b.WriteString("Produce 2-3 specific forecasts. Respond with JSON: {\"forecasts\": [{\"location\": string, " +
		"\"region\": string, \"incidentType\": string, \"windowMinutes\": number, " +
		"\"confidence\": number, \"reasoning\": string}]}")

	text, err := g.client.Complete(ctx, b.String(), 500)
	if err != nil {
		metrics.ObserveExtraction(cityName, "predictor", "failure", start)
		return nil, fmt.Errorf("forecasts: %w", err)
	}

	var list forecastList
	if err := extractJSONBlock(text, &list); err != nil {
		metrics.ObserveExtraction(cityName, "predictor", "parse_error", start)
		return nil, fmt.Errorf("forecasts: %w", err)
	}

	metrics.ObserveExtraction(cityName, "predictor", "accepted", start)
	return list.Forecasts, nil
}

// Ask answers a free-form question against the city's recent incidents
// and active patterns. The answer is plain text, not JSON.
func (g *Gateway) Ask(ctx context.Context, question string, recent []models.Incident, patterns []models.Pattern, profile *geo.CityProfile) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the intelligence desk for %s. Answer the analyst's question using only the material below.\n\n", displayName(profile))
	b.WriteString("Recent incidents:\n")
	for _, inc := range recent {
		fmt.Fprintf(&b, "- #%d [%s] %s @ %s (%s)\n", inc.ID, inc.Type, inc.Summary, inc.Location, inc.Borough)
	}
	if len(patterns) > 0 {
		b.WriteString("\nActive patterns:\n")
		for _, p := range patterns {
			fmt.Fprintf(&b, "- %s: %s (%d incidents)\n", p.Name, strings.Join(p.Connections, "; "), len(p.LinkedIncidentIDs))
		}
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n\nAnswer in 2-4 sentences. If the material does not cover it, say so.", question)

	text, err := g.client.Complete(ctx, b.String(), 400)
	if err != nil {
		return "", fmt.Errorf("ask: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Briefing produces a situation briefing from the city's recent
// incidents, active patterns, and forecast track record.
func (g *Gateway) Briefing(ctx context.Context, recent []models.Incident, patterns []models.Pattern, stats models.PredictionStats, profile *geo.CityProfile) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a shift briefing for %s.\n\n", displayName(profile))
	fmt.Fprintf(&b, "Incidents this window: %d\n", len(recent))
	for _, inc := range recent {
		fmt.Fprintf(&b, "- #%d [%s/%s] %s @ %s (%s)\n", inc.ID, inc.Type, inc.Priority, inc.Summary, inc.Location, inc.Borough)
	}
	if len(patterns) > 0 {
		b.WriteString("\nActive patterns:\n")
		for _, p := range patterns {
			fmt.Fprintf(&b, "- %s (confidence %.0f%%): %s\n", p.Name, p.Confidence*100, strings.Join(p.Connections, "; "))
		}
	}
	fmt.Fprintf(&b, "\nForecast track record: %d issued, %d correct, %d pending (%.0f%% accuracy).\n",
		stats.Total, stats.Correct, len(stats.Pending), stats.Accuracy*100)
	b.WriteString("\nCover the dominant activity, notable clusters, and what the next shift should watch. Plain prose, no headers.")

	text, err := g.client.Complete(ctx, b.String(), 700)
	if err != nil {
		return "", fmt.Errorf("briefing: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// incidentPrompt renders the city-specific extraction prompt.
func incidentPrompt(transcript string, profile *geo.CityProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You analyze police radio traffic from %s.\n", displayName(profile))
	if profile != nil {
		if len(profile.Boroughs) > 0 {
			fmt.Fprintf(&b, "Regions: %s.\n", strings.Join(profile.Boroughs, ", "))
		}
		if len(profile.Vocabulary) > 0 {
			fmt.Fprintf(&b, "Radio vocabulary: %s.\n", strings.Join(profile.Vocabulary, ", "))
		}
		if len(profile.Landmarks) > 0 {
			fmt.Fprintf(&b, "Known landmarks: %s.\n", strings.Join(profile.Landmarks, ", "))
		}
	}
	fmt.Fprintf(&b, "\nTranscript: %q\n\n", transcript)
	b.WriteString("Decide whether this describes a real incident. Respond with JSON: " +
		"{\"hasIncident\": bool, \"incidentType\": string, \"location\": string, " +
		"\"region\": string, \"precinct\": string, \"priority\": string, " +
		"\"summary\": string, \"isArrest\": bool}")
	return b.String()
}

func profileName(p *geo.CityProfile) string {
	if p == nil {
		return "unknown"
	}
	return p.Name
}

func displayName(p *geo.CityProfile) string {
	if p == nil {
		return "the city"
	}
	return p.DisplayName
}

func streetContext(p *geo.CityProfile) string {
	if p == nil || p.StreetContext == "" {
		return "no street topology on file"
	}
	return p.StreetContext
}
