package normalizer

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/address-resolver/app/models"
	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"
)

var (
	reLetterDot  = regexp.MustCompile(`(\pL)\.`)
	reSeparators = regexp.MustCompile(`[\s,;:()\[\]"'!?]+`)
)

// Confidence penalties per applied correction.
const (
	spellingPenalty = 0.05
	fuzzyPenalty    = 0.10
	minConfidence   = 0.5
	fuzzyMinRunes   = 5
)

// TextNormalizer canonicalizes raw Turkish address text. It is safe for
// concurrent use once constructed.
type TextNormalizer struct {
	dict   *Dictionaries
	logger *zap.Logger

	abbrev      map[string]string
	maxWindow   int
	corrections map[string]string
	protected   map[string]bool
	vocab       map[string]bool
	byFold      map[string][]string
	byLen       map[int][]string
}

// Option customizes a TextNormalizer.
type Option func(*TextNormalizer)

// WithVocabulary adds known words, typically reference place names, that
// diacritic restoration and fuzzy correction may map to.
func WithVocabulary(words ...string) Option {
	return func(tn *TextNormalizer) {
		for _, w := range words {
			for _, tok := range tokenize(FoldCase(w)) {
				tn.addWord(tok)
			}
		}
	}
}

// NewTextNormalizer builds a normalizer over dict.
func NewTextNormalizer(dict *Dictionaries, logger *zap.Logger, opts ...Option) *TextNormalizer {
	tn := &TextNormalizer{
		dict:        dict,
		logger:      logger,
		abbrev:      make(map[string]string),
		corrections: make(map[string]string),
		protected:   make(map[string]bool),
		vocab:       make(map[string]bool),
		byFold:      make(map[string][]string),
		byLen:       make(map[int][]string),
	}

	for _, p := range dict.Protected {
		tn.protected[p] = true
		tn.protected[ASCIIFold(p)] = true
		tn.addWord(p)
	}
	for _, w := range dict.Vocabulary {
		tn.addWord(w)
	}
	for k, v := range dict.Abbreviations {
		tn.abbrev[k] = v
		if ak := ASCIIFold(k); ak != k {
			if _, taken := dict.Abbreviations[ak]; !taken {
				tn.abbrev[ak] = v
			}
		}
		if n := len(strings.Fields(k)); n > tn.maxWindow {
			tn.maxWindow = n
		}
		for _, tok := range strings.Fields(v) {
			tn.addWord(tok)
		}
	}
	for k, v := range dict.Corrections {
		tn.corrections[k] = v
		for _, tok := range strings.Fields(v) {
			tn.addWord(tok)
		}
	}
	for _, opt := range opts {
		opt(tn)
	}
	return tn
}

func (tn *TextNormalizer) addWord(w string) {
	if w == "" || tn.vocab[w] {
		return
	}
	tn.vocab[w] = true
	f := ASCIIFold(w)
	tn.byFold[f] = append(tn.byFold[f], w)
	n := len(f)
	tn.byLen[n] = append(tn.byLen[n], w)
}

// Version returns the dictionary version in use.
func (tn *TextNormalizer) Version() string { return tn.dict.Version }

// Normalize folds, expands and corrects raw. Empty input yields an empty result
// flagged Empty; it never fails on valid UTF-8.
func (tn *TextNormalizer) Normalize(raw string) models.NormalizedAddress {
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, " ")
	}
	tokens := tokenize(FoldCase(raw))
	if len(tokens) == 0 {
		return models.NormalizedAddress{Empty: true}
	}

	out := make([]string, 0, len(tokens))
	var corrections []models.Correction
	patterns := map[string]bool{}

	for i := 0; i < len(tokens); {
		tok := tokens[i]

		if tn.isProtected(tok) {
			out = append(out, tok)
			i++
			continue
		}

		if key, exp, n := tn.matchAbbreviation(tokens, i); n > 0 {
			out = append(out, strings.Fields(exp)...)
			patterns[key] = true
			corrections = append(corrections, models.Correction{
				Kind: models.CorrectionAbbreviation, Original: strings.Join(tokens[i:i+n], " "),
				Replacement: exp, Start: i, End: i + n,
			})
			i += n
			continue
		}

		if fixed, kind, ok := tn.correctToken(tok); ok {
			out = append(out, strings.Fields(fixed)...)
			corrections = append(corrections, models.Correction{
				Kind: kind, Original: tok, Replacement: fixed, Start: i, End: i + 1,
			})
		} else {
			out = append(out, tok)
		}
		i++
	}

	result := models.NormalizedAddress{
		Text:        strings.Join(out, " "),
		Corrections: corrections,
		Patterns:    sortedKeys(patterns),
		Confidence:  correctionConfidence(corrections),
	}
	if len(corrections) > 0 {
		tn.logger.Debug("normalized address",
			zap.String("text", result.Text),
			zap.Int("corrections", len(corrections)))
	}
	return result
}

func (tn *TextNormalizer) isProtected(tok string) bool {
	return tn.protected[tok] || tn.protected[ASCIIFold(tok)]
}

// matchAbbreviation tries the longest window first so multi-token keys are not
// shadowed by a shorter prefix.
func (tn *TextNormalizer) matchAbbreviation(tokens []string, i int) (string, string, int) {
	window := tn.maxWindow
	if rest := len(tokens) - i; rest < window {
		window = rest
	}
	for n := window; n >= 1; n-- {
		span := tokens[i : i+n]
		if n > 1 && tn.anyProtected(span) {
			continue
		}
		key := strings.Join(span, " ")
		if exp, ok := tn.abbrev[key]; ok {
			return key, exp, n
		}
		if exp, ok := tn.abbrev[ASCIIFold(key)]; ok {
			return ASCIIFold(key), exp, n
		}
	}
	return "", "", 0
}

func (tn *TextNormalizer) anyProtected(span []string) bool {
	for _, t := range span {
		if tn.isProtected(t) {
			return true
		}
	}
	return false
}

// correctToken applies, in order, the curated table, diacritic restoration and
// bounded edit-distance correction.
func (tn *TextNormalizer) correctToken(tok string) (string, models.CorrectionKind, bool) {
	if fixed, ok := tn.corrections[tok]; ok && fixed != tok {
		return fixed, models.CorrectionSpelling, true
	}
	if tn.vocab[tok] || hasDigit(tok) {
		return "", "", false
	}
	fold := ASCIIFold(tok)
	if fixed, ok := tn.corrections[fold]; ok && fixed != tok {
		return fixed, models.CorrectionSpelling, true
	}
	if words := tn.byFold[fold]; len(words) == 1 {
		return words[0], models.CorrectionDiacritic, true
	} else if len(words) > 1 {
		// ambiguous restoration, leave as typed
		return "", "", false
	}
	if fixed, ok := tn.fuzzy(fold); ok {
		return fixed, models.CorrectionFuzzy, true
	}
	return "", "", false
}

func (tn *TextNormalizer) fuzzy(fold string) (string, bool) {
	n := len(fold)
	if n < fuzzyMinRunes {
		return "", false
	}
	maxDist := 1
	if n >= 8 {
		maxDist = 2
	}

	best, bestDist, ties := "", maxDist+1, 0
	for l := n - maxDist; l <= n+maxDist; l++ {
		for _, w := range tn.byLen[l] {
			d := levenshtein.ComputeDistance(fold, ASCIIFold(w))
			switch {
			case d < bestDist:
				best, bestDist, ties = w, d, 1
			case d == bestDist && w != best:
				ties++
			}
		}
	}
	if bestDist > maxDist || ties != 1 {
		return "", false
	}
	return best, true
}

func correctionConfidence(cs []models.Correction) float64 {
	conf := 1.0
	for _, c := range cs {
		switch c.Kind {
		case models.CorrectionSpelling:
			conf -= spellingPenalty
		case models.CorrectionFuzzy:
			conf -= fuzzyPenalty
		}
	}
	if conf < minConfidence {
		conf = minConfidence
	}
	return conf
}

// tokenize splits folded text into address tokens. Dots after letters and the
// usual punctuation separate tokens; slashes and dashes inside a token stay.
func tokenize(s string) []string {
	s = reLetterDot.ReplaceAllString(s, "$1 ")
	s = reSeparators.ReplaceAllString(s, " ")
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".-/")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Tokens exposes the tokenizer for callers that need the same token boundaries.
func Tokens(s string) []string { return tokenize(FoldCase(s)) }

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
