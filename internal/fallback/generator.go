// Package fallback produces deterministic summaries and tags for saved links when no
// AI result is available.
package fallback

import (
	"math/rand/v2"
	"strings"

	"github.com/stashlink/backend/internal/models"
)

// DefaultTag is used when no tag rule matches.
const DefaultTag = "Article"

// Content is a fallback enrichment result.
type Content struct {
	Category Category
	Summary  string
	Tags     []string
}

// Generator evaluates the summary and tag rules. The zero value is ready to use.
type Generator struct {
	// Pick returns a value in [0, n) and selects a generic summary; nil uses math/rand.
	Pick func(n int) int
}

// Generate never fails and always returns between one and three tags.
func (g Generator) Generate(title, host string) Content {
	title = strings.ToLower(title)
	host = strings.ToLower(host)

	content := Content{Category: CategoryGeneric}
	matched := false
	for _, rule := range summaryRules {
		if rule.match(title, host) {
			content.Category = rule.category
			content.Summary = rule.summary
			matched = true
			break
		}
	}
	if !matched {
		content.Summary = genericSummaries[g.pick(len(genericSummaries))]
	}

	content.Tags = Tags(title, host)
	return content
}

// Tags applies every tag rule, keeping discovery order and at most three tags.
func Tags(title, host string) []string {
	title = strings.ToLower(title)
	host = strings.ToLower(host)

	tags := make([]string, 0, models.MaxTags)
	seen := make(map[string]struct{}, len(tagRules))
	for _, rule := range tagRules {
		if _, ok := seen[rule.tag]; ok {
			continue
		}
		if rule.match(title, host) {
			seen[rule.tag] = struct{}{}
			tags = append(tags, rule.tag)
		}
	}

	if len(tags) > models.MaxTags {
		tags = tags[:models.MaxTags]
	}
	if len(tags) == 0 {
		tags = append(tags, DefaultTag)
	}
	return tags
}

func (g Generator) pick(n int) int {
	if g.Pick != nil {
		if i := g.Pick(n); i >= 0 && i < n {
			return i
		}
		return 0
	}
	return rand.IntN(n)
}
