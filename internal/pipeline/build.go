package pipeline

import (
	"fmt"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/internal/cluster"
	"github.com/address-resolver/internal/normalizer"
	"github.com/address-resolver/internal/parser"
	"github.com/address-resolver/internal/reference"
	"github.com/address-resolver/internal/similarity"
	"github.com/address-resolver/internal/store"
	"github.com/address-resolver/internal/validator"
	"go.uber.org/zap"
)

// Assets are the read-only datasets shared by every component.
type Assets struct {
	Index        *reference.Index
	Dictionaries *normalizer.Dictionaries
}

// LoadAssets loads the reference hierarchy and correction dictionaries,
// from cfg paths when set and from the embedded copies otherwise.
func LoadAssets(cfg config.DataCfg, logger *zap.Logger) (Assets, error) {
	ix, err := reference.Load(cfg.ReferencePath, logger)
	if err != nil {
		return Assets{}, fmt.Errorf("load reference hierarchy: %w", err)
	}
	var dict *normalizer.Dictionaries
	if cfg.DictionaryDir != "" {
		dict, err = normalizer.LoadDictionariesDir(cfg.DictionaryDir)
	} else {
		dict, err = normalizer.LoadDictionaries()
	}
	if err != nil {
		return Assets{}, fmt.Errorf("load dictionaries: %w", err)
	}
	logger.Info("Assets loaded",
		zap.String("reference_version", ix.Version()),
		zap.String("dictionary_version", dict.Version))
	return Assets{Index: ix, Dictionaries: dict}, nil
}

// Options carries the optional capabilities. Any field may be nil.
type Options struct {
	Extractor parser.EntityExtractor
	Embedder  similarity.Embedder
	Store     store.CandidateStore
}

// Build wires every component from cfg over the shared assets.
func Build(cfg config.ResolverCfg, assets Assets, opts Options, logger *zap.Logger) *Orchestrator {
	tn := normalizer.NewTextNormalizer(assets.Dictionaries, logger.Named("normalizer"),
		normalizer.WithVocabulary(assets.Index.Names()...))
	scorer := similarity.NewScorer(cfg.Similarity, assets.Index, opts.Embedder, logger.Named("similarity"))
	return New(cfg.Pipeline, Components{
		Normalizer: tn,
		Parser:     parser.NewComponentParser(assets.Index, opts.Extractor, logger.Named("parser")),
		Validator:  validator.NewHierarchyValidator(assets.Index, cfg.Validation, logger.Named("validator")),
		Scorer:     scorer,
		Clusterer:  cluster.NewDuplicateClusterer(scorer, cfg.Cluster, logger.Named("cluster")),
		Store:      opts.Store,
	}, logger.Named("pipeline"))
}
