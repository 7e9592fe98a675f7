package analysis

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// FillerKind distinguishes single-token fillers from multi-token phrases.
type FillerKind string

const (
	FillerSingle FillerKind = "single"
	FillerMulti  FillerKind = "multi"
)

// FillerMatch is one detected filler in a word sequence.
type FillerMatch struct {
	Text   string     `json:"word"`
	Index  int        `json:"index"`
	Length int        `json:"length"`
	Kind   FillerKind `json:"type"`
}

// Lexicon is the filler vocabulary. Phrases are checked in declaration
// order and the first one that fits wins, so a longer phrase declared after
// a shorter phrase with the same prefix never matches.
type Lexicon struct {
	single  map[string]struct{}
	phrases [][]string
}

// defaultSingleFillers and defaultFillerPhrases are the built-in lexicon.
var (
	defaultSingleFillers = []string{"um", "uh", "er", "ah", "hmm", "like", "basically", "literally"}
	defaultFillerPhrases = [][]string{
		{"you", "know"},
		{"i", "mean"},
		{"sort", "of"},
		{"kind", "of"},
		{"you", "know", "what", "i", "mean"},
	}
)

// NewLexicon normalizes the given fillers and phrases. Entries that
// normalize to nothing are dropped.
func NewLexicon(single []string, phrases [][]string) *Lexicon {
	l := &Lexicon{single: make(map[string]struct{}, len(single))}
	for _, w := range single {
		if n := Normalize(w); n != "" {
			l.single[n] = struct{}{}
		}
	}
	for _, p := range phrases {
		var tokens []string
		for _, w := range p {
			if n := Normalize(w); n != "" {
				tokens = append(tokens, n)
			}
		}
		if len(tokens) > 0 {
			l.phrases = append(l.phrases, tokens)
		}
	}
	return l
}

// DefaultLexicon returns the built-in English filler lexicon.
func DefaultLexicon() *Lexicon {
	return NewLexicon(defaultSingleFillers, defaultFillerPhrases)
}

type lexiconFile struct {
	Single  []string   `yaml:"single"`
	Phrases [][]string `yaml:"phrases"`
}

// LoadLexicon reads a YAML lexicon file of the form
//
//	single: [um, uh]
//	phrases:
//	  - [you, know]
func LoadLexicon(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lexicon: %w", err)
	}
	defer f.Close()

	var lf lexiconFile
	if err := yaml.NewDecoder(f).Decode(&lf); err != nil {
		return nil, fmt.Errorf("decode lexicon: %w", err)
	}
	if len(lf.Single) == 0 && len(lf.Phrases) == 0 {
		return nil, fmt.Errorf("lexicon %s is empty", path)
	}
	return NewLexicon(lf.Single, lf.Phrases), nil
}

// Normalize lower-cases a word and strips everything that is not a letter,
// digit or space.
func Normalize(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	for _, r := range strings.ToLower(word) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Match scans words left to right and returns non-overlapping filler
// matches in token order.
func (l *Lexicon) Match(words []string) []FillerMatch {
	normalized := make([]string, len(words))
	for i, w := range words {
		normalized[i] = Normalize(w)
	}

	var matches []FillerMatch
	for i := 0; i < len(words); {
		if _, ok := l.single[normalized[i]]; ok {
			matches = append(matches, FillerMatch{Text: words[i], Index: i, Length: 1, Kind: FillerSingle})
			i++
			continue
		}

		advanced := false
		for _, phrase := range l.phrases {
			if !phraseAt(normalized, i, phrase) {
				continue
			}
			matches = append(matches, FillerMatch{
				Text:   strings.Join(words[i:i+len(phrase)], " "),
				Index:  i,
				Length: len(phrase),
				Kind:   FillerMulti,
			})
			i += len(phrase)
			advanced = true
			break
		}
		if !advanced {
			i++
		}
	}
	return matches
}

func phraseAt(tokens []string, i int, phrase []string) bool {
	if i+len(phrase) > len(tokens) {
		return false
	}
	for j, p := range phrase {
		if tokens[i+j] != p {
			return false
		}
	}
	return true
}
