package models

// Method labels for similarity sub-scores.
const (
	SemanticEmbedding    = "embedding"
	SemanticTokenOverlap = "token_overlap"

	GeographicCoordinates = "coordinates"
	GeographicCentroid    = "centroid"
	GeographicNeutral     = "neutral"
)

// SimilarityMethod records which signal produced each sub-score.
type SimilarityMethod struct {
	Semantic   string `bson:"semantic" json:"semantic"`
	Geographic string `bson:"geographic" json:"geographic"`
}

// SimilarityBreakdown is the weighted comparison of two addresses.
type SimilarityBreakdown struct {
	Semantic     float64          `bson:"semantic" json:"semantic"`
	Geographic   float64          `bson:"geographic" json:"geographic"`
	Textual      float64          `bson:"textual" json:"textual"`
	Hierarchical float64          `bson:"hierarchical" json:"hierarchical"`
	Overall      float64          `bson:"overall" json:"overall"`
	IsMatch      bool             `bson:"is_match" json:"is_match"`
	Method       SimilarityMethod `bson:"method" json:"method"`
}
