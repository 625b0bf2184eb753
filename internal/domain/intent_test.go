package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geekspace/arbiter/internal/domain"
)

func TestClassifier_Classify(t *testing.T) {
	classifier := domain.NewClassifier(domain.DefaultClassifierConfig())

	tests := []struct {
		name     string
		message  string
		expected domain.Intent
	}{
		{
			name:     "short greeting is simple",
			message:  "hi",
			expected: domain.IntentSimple,
		},
		{
			name:     "two coding keywords trigger coding",
			message:  "implement function class debug",
			expected: domain.IntentCoding,
		},
		{
			name:     "single automation keyword triggers automation",
			message:  "set up a cron job for me",
			expected: domain.IntentAutomation,
		},
		{
			name:     "two planning keywords trigger planning",
			message:  "draft a roadmap with a timeline for the launch",
			expected: domain.IntentPlanning,
		},
		{
			name:     "two complex keywords trigger complex",
			message:  "explain and analyze the result",
			expected: domain.IntentComplex,
		},
		{
			name:     "single planning keyword stays simple",
			message:  "what is the goal here",
			expected: domain.IntentSimple,
		},
		{
			name:     "coding checked before automation on ties",
			message:  "debug the code for the cron trigger",
			expected: domain.IntentCoding,
		},
		{
			name:     "over forty words without keywords is complex",
			message:  strings.Repeat("word ", 45),
			expected: domain.IntentComplex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, classifier.Classify(tt.message))
		})
	}
}

func TestClassifier_LongMessageShortCircuits(t *testing.T) {
	classifier := domain.NewClassifier(domain.DefaultClassifierConfig())

	// 85 words loaded with coding keywords: word count wins before any
	// keyword scoring.
	message := strings.Repeat("implement function class debug code ", 17)
	require.Greater(t, len(strings.Fields(message)), 80)
	require.Equal(t, domain.IntentComplex, classifier.Classify(message))
}

func TestClassifier_Deterministic(t *testing.T) {
	classifier := domain.NewClassifier(domain.DefaultClassifierConfig())

	messages := []string{
		"hi",
		"implement function class",
		strings.Repeat("word ", 100),
		"plan my schedule",
		"",
	}

	for _, msg := range messages {
		first := classifier.Classify(msg)
		for i := 0; i < 10; i++ {
			require.Equal(t, first, classifier.Classify(msg))
		}
	}
}

func TestClassifier_CaseInsensitive(t *testing.T) {
	classifier := domain.NewClassifier(domain.DefaultClassifierConfig())

	require.Equal(t, domain.IntentCoding, classifier.Classify("IMPLEMENT the FUNCTION"))
	require.Equal(t, domain.IntentAutomation, classifier.Classify("WEBHOOK setup"))
}

func TestClassifier_ConfigurableThresholds(t *testing.T) {
	cfg := domain.DefaultClassifierConfig()
	cfg.CodingThreshold = 1

	classifier := domain.NewClassifier(cfg)
	require.Equal(t, domain.IntentCoding, classifier.Classify("fix this bug"))
}
