// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package filter classifies transcripts before they reach extraction,
// rejecting transcription noise: echoed prompts, stock filler, sign-offs,
// advertisement boilerplate, and looping/garbled audio.
package filter

import (
	"strings"
)

// RejectReason identifies why a transcript was rejected.
type RejectReason string

const (
	RejectNone          RejectReason = ""
	RejectTooShort      RejectReason = "too_short"
	RejectPromptLeak    RejectReason = "prompt_leak"
	RejectFiller        RejectReason = "filler"
	RejectSignOff       RejectReason = "sign_off"
	RejectAdvertisement RejectReason = "advertisement"
	RejectLooping       RejectReason = "looping"
)

// Result is the outcome of classifying one transcript.
type Result struct {
	Accepted bool
	Reason   RejectReason

	// DropConnection signals that the originating stream is producing
	// garbled looping audio and should be reconnected.
	DropConnection bool
}

// minLength is the minimum accepted transcript length in characters.
const minLength = 12

// signOffMaxLength bounds how long a text can be and still be dismissed
// as a bare sign-off; longer texts containing a sign-off may carry real
// traffic around it.
const signOffMaxLength = 60

// loopingMinLength is the length above which the unique-word ratio check
// applies. Short transcripts legitimately repeat ("10-4, 10-4").
const loopingMinLength = 120

// loopingRatio is the unique-word ratio below which a long transcript is
// treated as looping audio.
const loopingRatio = 0.3

// promptLeakFragments indicate the speech-to-text prompt itself was echoed
// back as output. Matched case-insensitively anywhere in the text.
var promptLeakFragments = []string{
	"transcribe the following",
	"transcribe this audio",
	"you are a transcription",
	"as an ai",
	"i cannot transcribe",
	"audio transcription of",
	"police radio dispatch audio",
	"[inaudible]",
}

// fillerPhrases are stock outputs models emit for silence or music.
// Compared against the whole normalized text.
var fillerPhrases = []string{
	"thank you.",
	"thank you",
	"thanks.",
	"you",
	"bye.",
	"bye",
	"okay.",
	"okay",
	"uh",
	"um",
	"music",
	"[music]",
	"(music)",
	"silence",
	"[silence]",
	".",
	"-",
}

// signOffPhrases terminate broadcasts; a short text that is only a
// sign-off carries no incident content.
var signOffPhrases = []string{
	"thanks for watching",
	"thanks for listening",
	"see you next time",
	"see you in the next",
	"don't forget to subscribe",
	"like and subscribe",
	"signing off",
}

// adFragments mark advertisement or boilerplate audio that leaks into
// scanner streams between transmissions.
var adFragments = []string{
	"this episode is sponsored",
	"sponsored by",
	"promo code",
	"visit our website",
	"www.",
	".com/",
	"free trial",
	"limited time offer",
	"download the app",
	"broadcastify",
}

// Classify is a pure function from transcript text to accept/reject.
// Checks run in a fixed order so tests and callers can rely on which
// reason wins when several apply.
func Classify(text string) Result {
	normalized := strings.ToLower(strings.TrimSpace(text))

	// Prompt leakage outranks everything: the text is not audio content.
	for _, fragment := range promptLeakFragments {
		if strings.Contains(normalized, fragment) {
			return Result{Reason: RejectPromptLeak}
		}
	}

	if len(normalized) < minLength {
		if normalized == "" {
			return Result{Reason: RejectTooShort}
		}
		for _, phrase := range fillerPhrases {
			if normalized == phrase {
				return Result{Reason: RejectFiller}
			}
		}
		return Result{Reason: RejectTooShort}
	}

	for _, phrase := range fillerPhrases {
		if normalized == phrase {
			return Result{Reason: RejectFiller}
		}
	}

	if len(normalized) <= signOffMaxLength {
		for _, phrase := range signOffPhrases {
			if strings.Contains(normalized, phrase) {
				return Result{Reason: RejectSignOff}
			}
		}
	}

	for _, fragment := range adFragments {
		if strings.Contains(normalized, fragment) {
			return Result{Reason: RejectAdvertisement}
		}
	}

	if len(normalized) > loopingMinLength {
		if ratio := uniqueWordRatio(normalized); ratio < loopingRatio {
			// Looping output means the connection is replaying a bad
			// buffer; the connector should drop and reconnect.
			return Result{Reason: RejectLooping, DropConnection: true}
		}
	}

	return Result{Accepted: true}
}

// uniqueWordRatio returns unique words / total words for the text.
func uniqueWordRatio(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	return float64(len(unique)) / float64(len(words))
}
