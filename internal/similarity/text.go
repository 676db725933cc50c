package similarity

import (
	"sort"
	"strings"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/normalizer"
	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
)

// streetFuzzFloor is the ratio above which two street names count as the
// same street spelled differently.
const streetFuzzFloor = 0.85

func key(s string) string { return normalizer.Key(s) }

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(key(s)) {
		set[t] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// ratio is the normalized Levenshtein similarity of two strings.
func ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 1
	}
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

// tokenSetRatio compares the shared tokens against each side's remainder,
// so reordering costs nothing and extra tokens cost proportionally.
func tokenSetRatio(a, b string) float64 {
	sa, sb := tokenSet(a), tokenSet(b)
	var inter, onlyA, onlyB []string
	for t := range sa {
		if sb[t] {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range sb {
		if !sa[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(inter, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))
	if base == "" {
		return ratio(withA, withB)
	}
	// fully contained sides still pay for the length gap
	best := ratio(withA, withB)
	for _, r := range []float64{ratio(base, withA), ratio(base, withB)} {
		if r > best {
			best = r
		}
	}
	return (best + ratio(withA, withB)) / 2
}

func sortedTokens(s string) string {
	ts := strings.Fields(key(s))
	sort.Strings(ts)
	return strings.Join(ts, " ")
}

// textSimilarity blends the token-set ratio with Jaro-Winkler over sorted
// tokens. Jaro-Winkler is averaged over both orders to stay symmetric.
func textSimilarity(a, b string) float64 {
	if key(a) == "" || key(b) == "" {
		return 0
	}
	sa, sb := sortedTokens(a), sortedTokens(b)
	jw := (smetrics.JaroWinkler(sa, sb, 0.7, 4) + smetrics.JaroWinkler(sb, sa, 0.7, 4)) / 2
	return 0.8*tokenSetRatio(a, b) + 0.2*jw
}

func componentAgreement(kind models.ComponentKind, a, b string) float64 {
	ka, kb := key(a), key(b)
	if ka == kb {
		return 1
	}
	if kind == models.KindStreet {
		if r := ratio(ka, kb); r >= streetFuzzFloor {
			return r
		}
	}
	return 0
}
