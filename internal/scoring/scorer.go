// Package scoring implements the relevance heuristic that turns item text into a lead score.
//
// A score only exists when at least one profile keyword matches. Matched
// keywords give the base score; secondary signals, price and urgency
// patterns and known areas add to it; competing locations and stop-list
// phrases subtract. The result is clamped to [0, 100].
package scoring

import (
	"regexp"
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"lead_bot/internal/model"
	"lead_bot/internal/textnorm"
)

const (
	minScore = 0
	maxScore = 100
)

var (
	priceRe   = regexp.MustCompile(`(?i)\b\d{2,3}[\d\s,.]{0,9}\s?(?:(?:aed|usd|rub|dirhams?|dh)\b|\$|₽)`)
	urgencyRe = regexp.MustCompile(`(?i)\b(?:20\d{2}|q[1-4])\b|handover|сдача|ключи`)
)

// Weights is the tunable part of the heuristic.
type Weights struct {
	PerKeyword int
	KeywordCap int

	// Signals maps a phrase to the bonus it adds once when present.
	Signals map[string]int

	Price   int
	Urgency int

	Areas []string
	Area  int

	NegativeLocations []string
	NegativeLocation  int

	StopWord int
}

// DefaultWeights returns the production tables.
func DefaultWeights() Weights {
	return Weights{
		PerKeyword: 12,
		KeywordCap: 60,
		Signals: map[string]int{
			"продаю":       8,
			"куплю":        6,
			"сдам":         6,
			"аренда":       6,
			"for sale":     8,
			"инвестиции":   10,
			"инвестиция":   10,
			"roi":          8,
			"yield":        6,
			"рассрочка":    8,
			"off-plan":     8,
			"handover":     12,
			"ready":        4,
			"mortgage":     4,
			"discount":     4,
			"payment plan": 6,
		},
		Price:   15,
		Urgency: 10,
		Areas: []string{
			"marina", "downtown", "jvc", "business bay", "palm", "jumeirah", "bluewaters",
			"creek", "emaar", "dubai hills", "mbr city", "sobha", "aramco",
		},
		Area: 12,
		NegativeLocations: []string{
			"bali", "phuket", "moscow", "antalya", "istanbul", "lisbon", "tbilisi",
			"batumi", "thailand", "turkey", "portugal", "baku", "sochi", "cyprus",
		},
		NegativeLocation: 15,
		StopWord:         25,
	}
}

// Scorer evaluates item text against an interest profile. It is safe for
// concurrent use.
type Scorer struct {
	w Weights

	// The Aho-Corasick matchers keep per-call state, so Match is serialized.
	mu            sync.Mutex
	signals       *ahocorasick.Matcher
	signalWeights []int
	areas         *ahocorasick.Matcher
	negLocations  *ahocorasick.Matcher
}

// New builds a Scorer from the given weights.
func New(w Weights) *Scorer {
	s := &Scorer{w: w}

	phrases := make([]string, 0, len(w.Signals))
	for phrase, weight := range w.Signals {
		phrase = textnorm.Normalize(phrase)
		if phrase == "" {
			continue
		}
		phrases = append(phrases, phrase)
		s.signalWeights = append(s.signalWeights, weight)
	}
	s.signals = newMatcher(phrases)
	s.areas = newMatcher(normalizeAll(w.Areas))
	s.negLocations = newMatcher(normalizeAll(w.NegativeLocations))
	return s
}

// Score returns the clamped relevance score of text and the keyword phrases
// that matched, in the order they were supplied. When no keyword matches the
// result is (0, nil) regardless of any other signal.
func (s *Scorer) Score(text string, keywords []model.Keyword, negative []string, langFilter model.Lang) (int, []string) {
	norm := textnorm.Normalize(text)

	var matched []string
	seen := make(map[string]struct{})
	for _, kw := range keywords {
		phrase := textnorm.Normalize(kw.Phrase)
		if phrase == "" || !langAllowed(kw.Lang, langFilter) {
			continue
		}
		if _, dup := seen[phrase]; dup {
			continue
		}
		if strings.Contains(norm, phrase) {
			seen[phrase] = struct{}{}
			matched = append(matched, strings.TrimSpace(kw.Phrase))
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	score := min(s.w.KeywordCap, s.w.PerKeyword*len(matched))

	in := []byte(norm)
	s.mu.Lock()
	signalHits := match(s.signals, in)
	areaHits := match(s.areas, in)
	negHits := match(s.negLocations, in)
	s.mu.Unlock()

	for _, idx := range signalHits {
		score += s.signalWeights[idx]
	}
	if priceRe.MatchString(norm) {
		score += s.w.Price
	}
	if urgencyRe.MatchString(norm) {
		score += s.w.Urgency
	}
	score += s.w.Area * len(areaHits)
	score -= s.w.NegativeLocation * len(negHits)

	for _, neg := range negative {
		phrase := textnorm.Normalize(neg)
		if phrase != "" && strings.Contains(norm, phrase) {
			score -= s.w.StopWord
		}
	}

	return max(minScore, min(maxScore, score)), matched
}

// langAllowed reports whether a keyword tagged lang participates under filter.
func langAllowed(lang, filter model.Lang) bool {
	if filter == "" || filter == model.LangBoth {
		return true
	}
	if lang == "" || lang == model.LangBoth {
		return true
	}
	return strings.EqualFold(string(lang), string(filter))
}

func newMatcher(dict []string) *ahocorasick.Matcher {
	if len(dict) == 0 {
		return nil
	}
	return ahocorasick.NewStringMatcher(dict)
}

// match returns the distinct dictionary indices present in in.
func match(m *ahocorasick.Matcher, in []byte) []int {
	if m == nil {
		return nil
	}
	return m.Match(in)
}

func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = textnorm.Normalize(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
