package models

// CorrectionKind classifies a change made during normalization.
type CorrectionKind string

const (
	CorrectionAbbreviation CorrectionKind = "abbreviation"
	CorrectionSpelling     CorrectionKind = "spelling"
	CorrectionDiacritic    CorrectionKind = "diacritic"
	CorrectionFuzzy        CorrectionKind = "fuzzy"
)

// Correction is one logged rewrite. Start and End are token offsets into the
// folded input, End exclusive.
type Correction struct {
	Kind        CorrectionKind `bson:"kind" json:"kind"`
	Original    string         `bson:"original" json:"original"`
	Replacement string         `bson:"replacement" json:"replacement"`
	Start       int            `bson:"start" json:"start"`
	End         int            `bson:"end" json:"end"`
}

// NormalizedAddress is the output of the text normalizer.
type NormalizedAddress struct {
	Text        string       `bson:"text" json:"text"`
	Corrections []Correction `bson:"corrections,omitempty" json:"corrections,omitempty"`
	// Patterns holds the abbreviation keys that were expanded, sorted.
	Patterns   []string `bson:"patterns,omitempty" json:"patterns,omitempty"`
	Confidence float64  `bson:"confidence" json:"confidence"`
	Empty      bool     `bson:"empty" json:"empty"`
}
