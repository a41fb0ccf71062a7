// Package fuzzy adapts the go-fuzzywuzzy similarity scorer to the
// domain.Matcher capability used by the classifier and router.
package fuzzy

import (
	fuzzywuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// Scorer implements domain.Matcher with weighted-ratio scoring, the same
// scorer the typo-tolerant command syntax was designed around.
type Scorer struct{}

func NewScorer() Scorer { return Scorer{} }

// BestMatch returns the highest-scoring option and its 0-100 similarity.
// An empty option list scores zero.
func (Scorer) BestMatch(candidate string, options []string) (string, int) {
	if len(options) == 0 {
		return "", 0
	}
	pair, err := fuzzywuzzy.ExtractOne(candidate, options)
	if err != nil || pair == nil {
		return "", 0
	}
	return pair.Match, pair.Score
}
