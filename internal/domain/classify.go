package domain

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// Keyword dictionaries for headline classification, checked from most to
// least severe. Anything unmatched is low.
var (
	criticalKeywords = []string{"killed", "dead", "massacre", "attack", "bombing", "explosion"}
	highKeywords     = []string{"war", "conflict", "violence", "protest", "crisis"}
	mediumKeywords   = []string{"tension", "threat", "dispute", "sanction"}
)

// Classifier assigns a severity to a headline when the feed does not supply one.
type Classifier struct {
	mu    sync.Mutex // matchers keep per-call state
	tiers []tier
}

type tier struct {
	severity Severity
	matcher  *ahocorasick.Matcher
}

// NewClassifier builds the keyword matchers.
func NewClassifier() *Classifier {
	return &Classifier{tiers: []tier{
		{severity: SeverityCritical, matcher: ahocorasick.NewStringMatcher(criticalKeywords)},
		{severity: SeverityHigh, matcher: ahocorasick.NewStringMatcher(highKeywords)},
		{severity: SeverityMedium, matcher: ahocorasick.NewStringMatcher(mediumKeywords)},
	}}
}

// Classify returns the highest tier whose keywords occur in title.
func (c *Classifier) Classify(title string) Severity {
	if c == nil || title == "" {
		return SeverityLow
	}
	in := []byte(strings.ToLower(title))
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tiers {
		if len(t.matcher.Match(in)) > 0 {
			return t.severity
		}
	}
	return SeverityLow
}
