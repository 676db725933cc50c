package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/address-resolver/app/models"
	"gopkg.in/yaml.v3"
)

// Validation modes.
const (
	ModeStrict   = "strict"
	ModeFlexible = "flexible"
)

type SimilarityWeights struct {
	Semantic     float64 `yaml:"semantic" json:"semantic"`
	Geographic   float64 `yaml:"geographic" json:"geographic"`
	Textual      float64 `yaml:"textual" json:"textual"`
	Hierarchical float64 `yaml:"hierarchical" json:"hierarchical"`
}

type HierarchyWeights struct {
	Province        float64 `yaml:"province" json:"province"`
	District        float64 `yaml:"district" json:"district"`
	Neighborhood    float64 `yaml:"neighborhood" json:"neighborhood"`
	Street          float64 `yaml:"street" json:"street"`
	BuildingNumber  float64 `yaml:"building_number" json:"building_number"`
	ApartmentNumber float64 `yaml:"apartment_number" json:"apartment_number"`
}

type SimilarityCfg struct {
	Weights          SimilarityWeights `yaml:"weights" json:"weights"`
	HierarchyWeights HierarchyWeights  `yaml:"hierarchy_weights" json:"hierarchy_weights"`
	MatchThreshold   float64           `yaml:"match_threshold" json:"match_threshold"`
	LocationBonusCap float64           `yaml:"location_bonus_cap" json:"location_bonus_cap"`
	PatternBonus     float64           `yaml:"pattern_bonus" json:"pattern_bonus"`
	GeoHalfLifeKm    float64           `yaml:"geo_half_life_km" json:"geo_half_life_km"`
	// NeutralGeographic is used when neither side can be located.
	NeutralGeographic float64 `yaml:"neutral_geographic" json:"neutral_geographic"`
	// MissingComponentScore is the agreement credited when a component is
	// missing on either side.
	MissingComponentScore float64 `yaml:"missing_component_score" json:"missing_component_score"`
}

type ValidationCfg struct {
	Mode                  string             `yaml:"mode" json:"mode"`
	MaxCentroidDistanceKm float64            `yaml:"max_centroid_distance_km" json:"max_centroid_distance_km"`
	Bounds                models.BoundingBox `yaml:"bounds" json:"bounds"`
}

type ClusterCfg struct {
	Threshold   float64 `yaml:"threshold" json:"threshold"`
	Blocking    bool    `yaml:"blocking" json:"blocking"`
	Strict      bool    `yaml:"strict" json:"strict"`
	Concurrency int     `yaml:"concurrency" json:"concurrency"`
}

type AggregationWeights struct {
	Validation    float64 `yaml:"validation" json:"validation"`
	Parsing       float64 `yaml:"parsing" json:"parsing"`
	Correction    float64 `yaml:"correction" json:"correction"`
	BestCandidate float64 `yaml:"best_candidate" json:"best_candidate"`
}

type PipelineCfg struct {
	CandidateLimit   int                `yaml:"candidate_limit" json:"candidate_limit"`
	TopK             int                `yaml:"top_k" json:"top_k"`
	RadiusMeters     float64            `yaml:"radius_meters" json:"radius_meters"`
	BatchConcurrency int                `yaml:"batch_concurrency" json:"batch_concurrency"`
	StoreTimeout     time.Duration      `yaml:"store_timeout" json:"store_timeout"`
	MinInputRunes    int                `yaml:"min_input_runes" json:"min_input_runes"`
	Aggregation      AggregationWeights `yaml:"aggregation" json:"aggregation"`
}

type DataCfg struct {
	// DictionaryDir overrides the embedded dictionaries when set.
	DictionaryDir string `yaml:"dictionary_dir" json:"dictionary_dir"`
	// ReferencePath points to a CSV or XLSX dataset; empty uses the embedded one.
	ReferencePath string `yaml:"reference_path" json:"reference_path"`
}

// ResolverCfg holds the engine tunables.
type ResolverCfg struct {
	Similarity SimilarityCfg `yaml:"similarity" json:"similarity"`
	Validation ValidationCfg `yaml:"validation" json:"validation"`
	Cluster    ClusterCfg    `yaml:"cluster" json:"cluster"`
	Pipeline   PipelineCfg   `yaml:"pipeline" json:"pipeline"`
	Data       DataCfg       `yaml:"data" json:"data"`
}

// C is the process-wide engine configuration.
var C = Default()

// Default returns the stock tunables.
func Default() ResolverCfg {
	return ResolverCfg{
		Similarity: SimilarityCfg{
			Weights: SimilarityWeights{Semantic: 0.4, Geographic: 0.3, Textual: 0.2, Hierarchical: 0.1},
			HierarchyWeights: HierarchyWeights{
				Province: 0.30, District: 0.25, Neighborhood: 0.20,
				Street: 0.15, BuildingNumber: 0.05, ApartmentNumber: 0.05,
			},
			MatchThreshold:        0.6,
			LocationBonusCap:      0.2,
			PatternBonus:          0.05,
			GeoHalfLifeKm:         5,
			NeutralGeographic:     0.5,
			MissingComponentScore: 0,
		},
		Validation: ValidationCfg{
			Mode:                  ModeFlexible,
			MaxCentroidDistanceKm: 20,
			Bounds:                models.TurkeyBounds,
		},
		Cluster: ClusterCfg{
			Threshold:   0.8,
			Blocking:    true,
			Concurrency: 8,
		},
		Pipeline: PipelineCfg{
			CandidateLimit:   20,
			TopK:             5,
			RadiusMeters:     2000,
			BatchConcurrency: 10,
			StoreTimeout:     2 * time.Second,
			MinInputRunes:    3,
			Aggregation: AggregationWeights{
				Validation: 0.35, Parsing: 0.25, Correction: 0.15, BestCandidate: 0.25,
			},
		},
	}
}

// Load reads a YAML file on top of the defaults into C.
func Load(path string) error {
	cfg, err := Read(path)
	if err != nil {
		return err
	}
	C = cfg
	return nil
}

// Read parses a YAML file on top of the defaults and applies env overrides.
func Read(path string) (ResolverCfg, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read resolver config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse resolver config: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ENV overrides
func applyEnv(cfg *ResolverCfg) {
	switch os.Getenv("VALIDATION_MODE") {
	case ModeStrict:
		cfg.Validation.Mode = ModeStrict
	case ModeFlexible:
		cfg.Validation.Mode = ModeFlexible
	}
	if v, err := strconv.Atoi(os.Getenv("BATCH_CONCURRENCY")); err == nil && v > 0 {
		cfg.Pipeline.BatchConcurrency = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("MATCH_THRESHOLD"), 64); err == nil {
		cfg.Similarity.MatchThreshold = v
	}
	if v := os.Getenv("REFERENCE_PATH"); v != "" {
		cfg.Data.ReferencePath = v
	}
	if v := os.Getenv("DICTIONARY_DIR"); v != "" {
		cfg.Data.DictionaryDir = v
	}
}

// Validate rejects settings the engine cannot run with.
func (c ResolverCfg) Validate() error {
	if c.Validation.Mode != ModeStrict && c.Validation.Mode != ModeFlexible {
		return fmt.Errorf("unknown validation mode %q", c.Validation.Mode)
	}
	if c.Pipeline.BatchConcurrency <= 0 {
		return fmt.Errorf("batch_concurrency must be positive, got %d", c.Pipeline.BatchConcurrency)
	}
	if c.Pipeline.CandidateLimit <= 0 || c.Pipeline.TopK <= 0 {
		return fmt.Errorf("candidate_limit and top_k must be positive")
	}
	if c.Similarity.MatchThreshold < 0 || c.Similarity.MatchThreshold > 1 {
		return fmt.Errorf("match_threshold %.2f outside [0,1]", c.Similarity.MatchThreshold)
	}
	if c.Cluster.Threshold < 0 || c.Cluster.Threshold > 1 {
		return fmt.Errorf("cluster threshold %.2f outside [0,1]", c.Cluster.Threshold)
	}
	return nil
}
