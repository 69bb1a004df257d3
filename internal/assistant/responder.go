// Package assistant implements the keyword-driven project assistant:
// canned replies, token estimation, tier limits and deterministic analyses.
package assistant

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// excerptLength is how much of an unmatched prompt the fallback quotes.
const excerptLength = 30

// Rule answers prompts containing any of its keywords.
type Rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Response string   `yaml:"response"`
}

// Sample is a seed recommendation shown to users with none of their own.
type Sample struct {
	Type       string  `yaml:"type"`
	Confidence float64 `yaml:"confidence"`
	Entity     string  `yaml:"entity"`
	Content    string  `yaml:"content"`
}

type ruleSet struct {
	Rules    []Rule   `yaml:"rules"`
	Fallback string   `yaml:"fallback"`
	Samples  []Sample `yaml:"samples"`
}

// Usage reports estimated token consumption of a completion.
type Usage struct {
	PromptTokens     int   `json:"promptTokens"`
	CompletionTokens int   `json:"completionTokens"`
	TotalTokens      int   `json:"totalTokens"`
	ProcessingTimeMS int64 `json:"processingTimeMs"`
}

// Completion is a reply and its usage.
type Completion struct {
	Text  string `json:"text"`
	Rule  string `json:"-"`
	Usage Usage  `json:"usage"`
}

// Responder picks canned replies by keyword.
type Responder struct {
	rules    []Rule
	fallback string
	samples  []Sample
}

// NewResponder loads the embedded rule set.
func NewResponder() (*Responder, error) {
	return LoadResponder(defaultRules)
}

// LoadResponder parses a YAML rule document.
func LoadResponder(data []byte) (*Responder, error) {
	var set ruleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse assistant rules: %w", err)
	}
	if set.Fallback == "" {
		return nil, errors.New("assistant rules: fallback response is required")
	}

	rules := make([]Rule, 0, len(set.Rules))
	for i, r := range set.Rules {
		if len(r.Keywords) == 0 || r.Response == "" {
			return nil, fmt.Errorf("assistant rules: rule %d (%s) needs keywords and a response", i, r.Name)
		}
		lowered := make([]string, len(r.Keywords))
		for j, k := range r.Keywords {
			lowered[j] = strings.ToLower(k)
		}
		r.Keywords = lowered
		rules = append(rules, r)
	}

	return &Responder{rules: rules, fallback: set.Fallback, samples: set.Samples}, nil
}

// Respond returns the reply for prompt and the name of the rule that produced
// it ("" for the fallback).
func (r *Responder) Respond(prompt string) (string, string) {
	lower := strings.ToLower(prompt)
	for _, rule := range r.rules {
		for _, k := range rule.Keywords {
			if strings.Contains(lower, k) {
				return rule.Response, rule.Name
			}
		}
	}
	return strings.ReplaceAll(r.fallback, "{excerpt}", excerpt(prompt, excerptLength)), ""
}

// Complete answers prompt and estimates the tokens spent.
func (r *Responder) Complete(prompt string) Completion {
	start := time.Now()
	text, rule := r.Respond(prompt)

	promptTokens := EstimateTokens(prompt)
	completionTokens := EstimateTokens(text)
	return Completion{
		Text: text,
		Rule: rule,
		Usage: Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
			ProcessingTimeMS: time.Since(start).Milliseconds(),
		},
	}
}

// Samples returns the seed recommendations.
func (r *Responder) Samples() []Sample {
	return append([]Sample(nil), r.samples...)
}

// EstimateTokens approximates tokens as one per four characters, rounded up.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
