package domain

import "strings"

// ClassifierConfig holds the keyword lists and thresholds for intent scoring.
// The defaults mirror observed traffic; they are fields rather than constants
// so deployments can tune them.
type ClassifierConfig struct {
	// LongMessageWords short-circuits to complex before any keyword scoring.
	LongMessageWords int
	// MediumMessageWords promotes to complex alongside the complex-keyword check.
	MediumMessageWords int

	CodingThreshold     int
	AutomationThreshold int
	PlanningThreshold   int
	ComplexThreshold    int

	CodingKeywords     []string
	PlanningKeywords   []string
	AutomationKeywords []string
	ComplexKeywords    []string
}

// DefaultClassifierConfig returns the stock scoring configuration.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		LongMessageWords:    80,
		MediumMessageWords:  40,
		CodingThreshold:     2,
		AutomationThreshold: 1,
		PlanningThreshold:   2,
		ComplexThreshold:    2,
		CodingKeywords: []string{
			"code", "function", "class", "debug", "error", "bug", "implement",
			"refactor", "typescript", "javascript", "python", "react", "api",
			"sql", "query", "regex", "algorithm", "data structure",
		},
		PlanningKeywords: []string{
			"plan", "schedule", "roadmap", "timeline", "milestone", "goal",
			"project", "workflow", "step by step", "outline", "organize",
		},
		AutomationKeywords: []string{
			"automate", "automation", "cron", "trigger", "webhook", "workflow",
			"schedule task", "batch", "pipeline", "n8n", "zapier",
			"heartbeat", "monitor", "uptime", "daily summary", "notify", "ping",
		},
		ComplexKeywords: []string{
			"explain", "analyze", "compare", "design", "architect", "strategy",
			"pros and cons", "trade-off", "deep dive", "in detail", "comprehensive",
		},
	}
}

// Classifier maps message text to an intent category. Pure and deterministic;
// safe for concurrent use.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a classifier with the given configuration.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify scores the message against the keyword buckets. Buckets are
// evaluated in a fixed order (coding, automation, planning, complex) so ties
// resolve deterministically.
func (c *Classifier) Classify(message string) Intent {
	lower := strings.ToLower(message)
	wordCount := len(strings.Fields(message))

	if wordCount > c.cfg.LongMessageWords {
		return IntentComplex
	}

	codingScore := matchCount(lower, c.cfg.CodingKeywords)
	automationScore := matchCount(lower, c.cfg.AutomationKeywords)
	planningScore := matchCount(lower, c.cfg.PlanningKeywords)
	complexScore := matchCount(lower, c.cfg.ComplexKeywords)

	switch {
	case codingScore >= c.cfg.CodingThreshold:
		return IntentCoding
	case automationScore >= c.cfg.AutomationThreshold:
		return IntentAutomation
	case planningScore >= c.cfg.PlanningThreshold:
		return IntentPlanning
	case complexScore >= c.cfg.ComplexThreshold || wordCount > c.cfg.MediumMessageWords:
		return IntentComplex
	default:
		return IntentSimple
	}
}

// matchCount counts how many keywords occur as substrings of the lowercased
// message.
func matchCount(lower string, keywords []string) int {
	count := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			count++
		}
	}
	return count
}
