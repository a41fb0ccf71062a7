package domain

// Matcher scores a candidate string against known options, returning the best
// option and its similarity on a 0-100 scale. The scoring algorithm is
// swappable without touching classifier or router logic.
type Matcher interface {
	BestMatch(candidate string, options []string) (match string, score int)
}
