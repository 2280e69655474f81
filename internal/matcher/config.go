// Package matcher canonicalizes free-text counterparty names against a list of
// reference names using approximate string similarity.
//
// Scores follow the familiar 0-100 "partial ratio" scale: the shorter name is
// compared against every equally long window of the longer one and the best
// window wins, so a name fully contained in another scores 100. A name is only
// rewritten when the best score is strictly greater than the configured
// threshold; otherwise the original name is kept.
//
// Example usage:
//
//	m, err := matcher.NewNameMatcher(matcher.DefaultMatchingConfig())
//	canonical := m.Canonicalize("Acme Corp", []string{"ACME CORPORATION"})
package matcher

import "fmt"

// DefaultThreshold is the similarity score a reference name has to exceed
// before a name is rewritten to it.
const DefaultThreshold = 75

// MatchingConfig holds the knobs of name canonicalization.
type MatchingConfig struct {
	// Threshold is exclusive: a match needs Score > Threshold.
	Threshold int `json:"threshold" mapstructure:"threshold"`
	// ProcessNames lower-cases names and replaces punctuation with spaces
	// before scoring.
	ProcessNames bool `json:"process_names" mapstructure:"process_names"`
}

// DefaultMatchingConfig returns a configuration with sensible defaults
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Threshold:    DefaultThreshold,
		ProcessNames: true,
	}
}

// StrictMatchingConfig only accepts near-identical names.
func StrictMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Threshold:    90,
		ProcessNames: true,
	}
}

// RelaxedMatchingConfig accepts looser matches, at the risk of merging
// distinct suppliers with similar names.
func RelaxedMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Threshold:    60,
		ProcessNames: true,
	}
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if mc.Threshold < 0 || mc.Threshold > 100 {
		return fmt.Errorf("threshold must be between 0 and 100: %d", mc.Threshold)
	}
	return nil
}

// Clone returns a copy of the configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	clone := *mc
	return &clone
}

// String returns a short description of the configuration
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{Threshold: %d, ProcessNames: %t}", mc.Threshold, mc.ProcessNames)
}
