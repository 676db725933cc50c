package models

// Processing statuses.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Stage is a step of the per-address state machine.
type Stage string

const (
	StageReceived             Stage = "received"
	StageNormalized           Stage = "normalized"
	StageParsed               Stage = "parsed"
	StageValidated            Stage = "validated"
	StageCandidatesFetched    Stage = "candidates_fetched"
	StageScored               Stage = "scored"
	StageConfidenceAggregated Stage = "confidence_aggregated"
	StageCompleted            Stage = "completed"
	StageError                Stage = "error"
)

// Parse methods.
const (
	ParseRuleBased   = "rule_based"
	ParseStatistical = "statistical"
	ParseHybrid      = "hybrid"
	ParseFailed      = "failed"
)

// RawInput is one address as received.
type RawInput struct {
	Text        string    `json:"text"`
	Coordinates *GeoPoint `json:"coordinates,omitempty"`
}

// CandidateMatch is a scored candidate from the store.
type CandidateMatch struct {
	ID             string              `bson:"id" json:"id"`
	Text           string              `bson:"text" json:"text"`
	Breakdown      SimilarityBreakdown `bson:"breakdown" json:"breakdown"`
	DistanceMeters *float64            `bson:"distance_meters,omitempty" json:"distance_meters,omitempty"`
}

// ResultError describes why processing stopped.
type ResultError struct {
	Kind    string `bson:"kind" json:"kind"`
	Stage   Stage  `bson:"stage" json:"stage"`
	Message string `bson:"message" json:"message"`
}

// ProcessingResult is the terminal record for one address.
type ProcessingResult struct {
	Index             int                `bson:"index" json:"index"`
	Raw               string             `bson:"raw" json:"raw"`
	NormalizedText    string             `bson:"normalized_text" json:"normalized_text"`
	Components        AddressComponents  `bson:"components" json:"components"`
	Corrections       []Correction       `bson:"corrections,omitempty" json:"corrections"`
	ParseMethod       string             `bson:"parse_method,omitempty" json:"parse_method,omitempty"`
	Validation        *ValidationResult  `bson:"validation,omitempty" json:"validation,omitempty"`
	Candidates        []CandidateMatch   `bson:"candidates,omitempty" json:"candidates"`
	OverallConfidence float64            `bson:"overall_confidence" json:"overall_confidence"`
	Status            string             `bson:"status" json:"status"`
	Stage             Stage              `bson:"stage" json:"stage"`
	Error             *ResultError       `bson:"error,omitempty" json:"error,omitempty"`
	Warnings          []string           `bson:"warnings,omitempty" json:"warnings,omitempty"`
	StepTimingsMs     map[string]float64 `bson:"step_timings_ms" json:"step_timings_ms"`
	DictionaryVersion string             `bson:"dictionary_version,omitempty" json:"dictionary_version,omitempty"`
}

// BestCandidate returns the top candidate, if any.
func (r *ProcessingResult) BestCandidate() (CandidateMatch, bool) {
	if len(r.Candidates) == 0 {
		return CandidateMatch{}, false
	}
	return r.Candidates[0], true
}

// Failed reports whether processing ended in the error state.
func (r *ProcessingResult) Failed() bool { return r.Status == StatusError }

// BatchResult aggregates a batch run.
type BatchResult struct {
	Results    []*ProcessingResult `json:"results"`
	Total      int                 `json:"total"`
	Succeeded  int                 `json:"succeeded"`
	Failed     int                 `json:"failed"`
	Pending    int                 `json:"pending"`
	Cancelled  bool                `json:"cancelled"`
	DurationMs float64             `json:"duration_ms"`
	// Throughput is processed addresses per second.
	Throughput float64 `json:"throughput"`
}
