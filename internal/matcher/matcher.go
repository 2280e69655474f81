package matcher

// Match is the best reference found for a name.
type Match struct {
	Choice string `json:"choice"`
	Index  int    `json:"index"`
	Score  int    `json:"score"`
}

// NameMatcher rewrites counterparty names to the closest reference name.
// It holds no mutable state and is safe for concurrent use.
type NameMatcher struct {
	config *MatchingConfig
}

// NewNameMatcher creates a matcher with the given configuration
func NewNameMatcher(config *MatchingConfig) (*NameMatcher, error) {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &NameMatcher{config: config.Clone()}, nil
}

// Config returns a copy of the matcher configuration
func (m *NameMatcher) Config() *MatchingConfig {
	return m.config.Clone()
}

// Score returns the similarity of name and reference on a 0-100 scale.
func (m *NameMatcher) Score(name, reference string) int {
	if m.config.ProcessNames {
		name, reference = ProcessName(name), ProcessName(reference)
	}
	return PartialRatio(name, reference)
}

// BestMatch returns the highest scoring reference. Ties go to the reference
// that appears first. ok is false only when references is empty.
func (m *NameMatcher) BestMatch(name string, references []string) (match Match, ok bool) {
	match.Index = -1
	for i, ref := range references {
		score := m.Score(name, ref)
		if match.Index == -1 || score > match.Score {
			match = Match{Choice: ref, Index: i, Score: score}
		}
	}
	return match, match.Index != -1
}

// Canonicalize returns the best reference for name when its score is strictly
// greater than the threshold, and name itself otherwise. A weak match is not
// an error.
func (m *NameMatcher) Canonicalize(name string, references []string) string {
	match, ok := m.BestMatch(name, references)
	if ok && match.Score > m.config.Threshold {
		return match.Choice
	}
	return name
}

// CanonicalizeAll canonicalizes every name, scoring each distinct name once.
// The result is index-aligned with names.
func (m *NameMatcher) CanonicalizeAll(names, references []string) []string {
	cache := make(map[string]string, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		canonical, seen := cache[name]
		if !seen {
			canonical = m.Canonicalize(name, references)
			cache[name] = canonical
		}
		out[i] = canonical
	}
	return out
}

// Canonicalize maps name to the closest entry of references using the given
// threshold and default name processing.
func Canonicalize(name string, references []string, threshold int) string {
	m := &NameMatcher{config: &MatchingConfig{Threshold: threshold, ProcessNames: true}}
	return m.Canonicalize(name, references)
}
