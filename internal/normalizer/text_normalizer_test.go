package normalizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/address-resolver/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestNormalizer(t *testing.T) *TextNormalizer {
	t.Helper()
	dict, err := LoadDictionaries()
	require.NoError(t, err)
	return NewTextNormalizer(dict, zap.NewNop(),
		WithVocabulary("İstanbul", "Kadıköy", "Moda", "Caferağa", "Ankara", "Çankaya", "Kızılay", "Beşiktaş", "Üsküdar"))
}

func TestFoldCase_Turkish(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"İSTANBUL", "istanbul"},
		{"IŞIK", "ışık"},
		{"Kadıköy", "kadıköy"},
		{"ÇANKAYA", "çankaya"},
		{"ÜSKÜDAR", "üsküdar"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := FoldCase(tt.in)
			assert.Equal(t, tt.want, got)
			// one letter in, one letter out
			assert.Equal(t, len([]rune(tt.in)), len([]rune(got)))
		})
	}
}

func TestASCIIFold(t *testing.T) {
	assert.Equal(t, "cankaya", ASCIIFold("Çankaya"))
	assert.Equal(t, "isik", ASCIIFold("IŞIK"))
	assert.Equal(t, "kadikoy", ASCIIFold("KADIKÖY"))
	assert.Equal(t, "istanbul", Key("  İstanbul "))
	assert.Equal(t, "Kadıköy", TitleCase("kadıköy"))
	assert.Equal(t, "İstanbul", TitleCase("istanbul"))
}

func TestNormalize_StandardAddresses(t *testing.T) {
	n := newTestNormalizer(t)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "abbreviated and misspelled",
			input: "istbl kadikoy moda mah caferaga sk 10",
			want:  "istanbul kadıköy moda mahallesi caferağa sokak 10",
		},
		{
			name:  "canonical with capitals",
			input: "İstanbul Kadıköy Moda Mahallesi Caferağa Sokak No 10",
			want:  "istanbul kadıköy moda mahallesi caferağa sokak no 10",
		},
		{
			name:  "ascii with colon number",
			input: "istanbul kadikoy moda mah caferaga sk no:10",
			want:  "istanbul kadıköy moda mahallesi caferağa sokak no 10",
		},
		{
			name:  "dotted abbreviations",
			input: "Kızılay Mah. Atatürk Bulv. No.5 Çankaya/ANKARA",
			want:  "kızılay mahallesi atatürk bulvarı no 5 çankaya/ankara",
		},
		{
			name:  "multi token abbreviation",
			input: "b.evler cd. 12",
			want:  "bahçelievler caddesi 12",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.input)
			assert.False(t, got.Empty)
			assert.Equal(t, tt.want, got.Text)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := newTestNormalizer(t)
	inputs := []string{
		"istbl kadikoy moda mah caferaga sk 10",
		"İstanbul Kadıköy Moda Mahallesi Caferağa Sokak No 10",
		"ISTANBUL BESIKTAS",
		"Kızılay Mah. Atatürk Bulv. No.5 Çankaya/ANKARA",
		"b evler k çekmece g o paşa",
		"caferaaga skk 3/4 d:5",
		"xyzzy qwerty 42",
		"ada sk moda",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			first := n.Normalize(in).Text
			second := n.Normalize(first).Text
			assert.Equal(t, first, second)
		})
	}
}

func TestNormalize_CorrectionLog(t *testing.T) {
	n := newTestNormalizer(t)
	got := n.Normalize("istbl kadikoy moda mah caferaga sk 10")

	require.NotEmpty(t, got.Corrections)
	first := got.Corrections[0]
	assert.Equal(t, models.CorrectionSpelling, first.Kind)
	assert.Equal(t, "istbl", first.Original)
	assert.Equal(t, "istanbul", first.Replacement)
	assert.Equal(t, 0, first.Start)
	assert.Equal(t, 1, first.End)

	kinds := map[models.CorrectionKind]int{}
	for _, c := range got.Corrections {
		kinds[c.Kind]++
	}
	assert.Equal(t, 2, kinds[models.CorrectionAbbreviation])
	assert.Equal(t, 1, kinds[models.CorrectionDiacritic])
	assert.Equal(t, []string{"mah", "sk"}, got.Patterns)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
}

func TestNormalize_FuzzyCorrection(t *testing.T) {
	n := newTestNormalizer(t)
	got := n.Normalize("caferaaga")
	assert.Equal(t, "caferağa", got.Text)
	require.Len(t, got.Corrections, 1)
	assert.Equal(t, models.CorrectionFuzzy, got.Corrections[0].Kind)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
}

func TestNormalize_LongestAbbreviationWins(t *testing.T) {
	dict := &Dictionaries{
		Abbreviations: map[string]string{"b": "bina", "b evler": "bahçelievler"},
	}
	dict.fold()
	n := NewTextNormalizer(dict, zap.NewNop())

	assert.Equal(t, "bahçelievler 5", n.Normalize("b evler 5").Text)
	assert.Equal(t, "bina 5", n.Normalize("b 5").Text)
}

func TestNormalize_ProtectedTermsOverrideTables(t *testing.T) {
	dict := &Dictionaries{
		Abbreviations: map[string]string{"ada": "adalar"},
		Corrections:   map[string]string{"ada": "adana", "moda": "model"},
		Protected:     []string{"ada", "moda"},
	}
	dict.fold()
	n := NewTextNormalizer(dict, zap.NewNop())

	got := n.Normalize("Ada Moda")
	assert.Equal(t, "ada moda", got.Text)
	assert.Empty(t, got.Corrections)
}

func TestNormalize_AmbiguousDiacriticLeftAlone(t *testing.T) {
	dict := &Dictionaries{}
	n := NewTextNormalizer(dict, zap.NewNop(), WithVocabulary("şahin", "sahin"))
	got := n.Normalize("SAHIN")
	assert.Equal(t, "sahın", got.Text)
	assert.Empty(t, got.Corrections)

	n = NewTextNormalizer(dict, zap.NewNop(), WithVocabulary("şeker", "şekerci"))
	assert.Equal(t, "şeker", n.Normalize("seker").Text)
}

func TestNormalize_EmptyInput(t *testing.T) {
	n := newTestNormalizer(t)
	for _, in := range []string{"", "   ", "\t\n", ",,; :"} {
		got := n.Normalize(in)
		assert.True(t, got.Empty, "input %q", in)
		assert.Equal(t, "", got.Text)
		assert.Zero(t, got.Confidence)
	}
}

func TestLoadDictionariesDir_OverridesSingleFile(t *testing.T) {
	dir := t.TempDir()
	body := "version: \"local\"\nabbreviations:\n  mh: mahallesi\n  cd: caddesi\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abbreviations.yaml"), []byte(body), 0o644))

	d, err := LoadDictionariesDir(dir)
	require.NoError(t, err)
	assert.Len(t, d.Abbreviations, 2)
	assert.NotEmpty(t, d.Corrections)
	assert.Equal(t, "2024.1+local", d.Version)
}

func TestLoadDictionaries_Embedded(t *testing.T) {
	d, err := LoadDictionaries()
	require.NoError(t, err)
	assert.Equal(t, "2024.1", d.Version)
	assert.Equal(t, "mahallesi", d.Abbreviations["mah"])
	assert.Equal(t, "küçükçekmece", d.Abbreviations["k çekmece"])
	assert.Contains(t, d.Protected, "moda")
}
