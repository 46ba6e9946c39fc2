// Package ai talks to the AI vendors that summarize and tag saved links.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stashlink/backend/internal/models"
)

var (
	// ErrMissingAPIKey indicates a vendor client was used without credentials.
	ErrMissingAPIKey = errors.New("ai: api key not configured")
	// ErrMalformedResponse indicates the vendor replied with an unusable payload.
	ErrMalformedResponse = errors.New("ai: malformed vendor response")
	// ErrProviderLocked indicates custom providers have not been unlocked.
	ErrProviderLocked = errors.New("ai: custom provider locked")
	// ErrUnknownMode indicates an unsupported provider mode.
	ErrUnknownMode = errors.New("ai: unknown provider mode")
)

// Analysis is the summary and tags a vendor produced for a link.
type Analysis struct {
	Summary string
	Tags    []string
}

// Analyzer is an AI vendor.
type Analyzer interface {
	Analyze(ctx context.Context, title, url string) (Analysis, error)
	Chat(ctx context.Context, query, background string) (string, error)
}

const analyzeSystemPrompt = "You summarize saved web links. Reply in exactly two lines: " +
	"SUMMARY: <one sentence under 30 words>\nTAGS: <up to three short tags separated by commas>"

const chatSystemPrompt = "You are a helpful assistant answering questions about a user's saved links. Keep answers concise."

func analyzePrompt(title, url string) string {
	return fmt.Sprintf("Title: %s\nURL: %s", title, url)
}

func chatPrompt(query, background string) string {
	if strings.TrimSpace(background) == "" {
		return query
	}
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s", background, query)
}

// ParseAnalysis extracts the SUMMARY and TAGS lines from a vendor reply.
func ParseAnalysis(reply string) (Analysis, error) {
	var analysis Analysis
	var rawTags string

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case hasPrefixFold(line, "SUMMARY:"):
			analysis.Summary = strings.TrimSpace(line[len("SUMMARY:"):])
		case hasPrefixFold(line, "TAGS:"):
			rawTags = line[len("TAGS:"):]
		}
	}

	if analysis.Summary == "" {
		return Analysis{}, fmt.Errorf("%w: missing summary", ErrMalformedResponse)
	}

	analysis.Tags = NormalizeTags(strings.Split(rawTags, ","))
	return analysis, nil
}

// NormalizeTags trims, de-duplicates and caps tags, defaulting to "Article".
func NormalizeTags(raw []string) []string {
	tags := make([]string, 0, models.MaxTags)
	seen := make(map[string]struct{}, len(raw))
	for _, tag := range raw {
		tag = strings.Trim(strings.TrimSpace(tag), "#")
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == models.MaxTags {
			break
		}
	}
	if len(tags) == 0 {
		tags = append(tags, "Article")
	}
	return tags
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
