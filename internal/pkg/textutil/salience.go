package textutil

import (
	"fmt"
	"math"
	"sort"
)

// TermScore is a term with its salience weight within a single text.
type TermScore struct {
	Term  string
	Score float64
}

// Salience ranks the content terms of a single text by term frequency
// weighted with inverse sentence frequency: terms concentrated in few
// sentences outrank terms spread evenly. Returns up to n terms, highest
// weight first, ties broken alphabetically. Errors when the text yields no
// usable terms, so callers can take their degraded path explicitly.
func Salience(text string, n int) ([]TermScore, error) {
	if n <= 0 {
		return nil, fmt.Errorf("salience: non-positive limit %d", n)
	}
	units := Sentences(text)
	if len(units) == 0 {
		units = []string{text}
	}

	freq := make(map[string]int)
	unitCount := make(map[string]int)
	total := 0
	for _, unit := range units {
		seen := make(map[string]bool)
		for _, token := range ContentTokens(unit) {
			freq[token]++
			total++
			if !seen[token] {
				unitCount[token]++
				seen[token] = true
			}
		}
	}
	if total == 0 {
		return nil, fmt.Errorf("salience: no content terms")
	}

	scores := make([]TermScore, 0, len(freq))
	for term, count := range freq {
		tf := float64(count) / float64(total)
		idf := math.Log(1 + float64(len(units))/float64(1+unitCount[term]))
		scores = append(scores, TermScore{Term: term, Score: tf * idf})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Term < scores[j].Term
	})
	if len(scores) > n {
		scores = scores[:n]
	}
	return scores, nil
}
