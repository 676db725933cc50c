package normalizer

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

const (
	abbreviationsFile = "abbreviations.yaml"
	correctionsFile   = "corrections.yaml"
	protectedFile     = "protected.yaml"
	vocabularyFile    = "vocabulary.yaml"
)

// Dictionaries holds the versioned correction assets. Keys are stored folded.
type Dictionaries struct {
	Version       string            `yaml:"version"`
	Abbreviations map[string]string `yaml:"abbreviations"`
	Corrections   map[string]string `yaml:"corrections"`
	Protected     []string          `yaml:"protected"`
	Vocabulary    []string          `yaml:"vocabulary"`
}

// LoadDictionaries loads the embedded dictionaries.
func LoadDictionaries() (*Dictionaries, error) {
	return loadFrom(func(name string) ([]byte, error) {
		return dataFS.ReadFile("data/" + name)
	})
}

// LoadDictionariesDir loads dictionaries from dir, falling back to the
// embedded copy for files that are absent.
func LoadDictionariesDir(dir string) (*Dictionaries, error) {
	return loadFrom(func(name string) ([]byte, error) {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			return dataFS.ReadFile("data/" + name)
		}
		return b, err
	})
}

func loadFrom(read func(string) ([]byte, error)) (*Dictionaries, error) {
	d := &Dictionaries{}
	var versions []string
	for _, name := range []string{abbreviationsFile, correctionsFile, protectedFile, vocabularyFile} {
		b, err := read(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var part Dictionaries
		if err := yaml.Unmarshal(b, &part); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if part.Abbreviations != nil {
			d.Abbreviations = part.Abbreviations
		}
		if part.Corrections != nil {
			d.Corrections = part.Corrections
		}
		if part.Protected != nil {
			d.Protected = part.Protected
		}
		if part.Vocabulary != nil {
			d.Vocabulary = part.Vocabulary
		}
		versions = append(versions, part.Version)
	}
	d.Version = combineVersions(versions)
	d.fold()
	return d, nil
}

// fold rewrites every key and value into the form the normalizer compares.
func (d *Dictionaries) fold() {
	foldMap := func(m map[string]string) map[string]string {
		out := make(map[string]string, len(m))
		for k, v := range m {
			key := strings.Join(tokenize(FoldCase(k)), " ")
			if key == "" {
				continue
			}
			out[key] = strings.Join(strings.Fields(FoldCase(v)), " ")
		}
		return out
	}
	d.Abbreviations = foldMap(d.Abbreviations)
	d.Corrections = foldMap(d.Corrections)
	for i, p := range d.Protected {
		d.Protected[i] = FoldCase(strings.TrimSpace(p))
	}
	for i, w := range d.Vocabulary {
		d.Vocabulary[i] = FoldCase(strings.TrimSpace(w))
	}
}

// combineVersions yields "2024.1" when all files agree, else a joined tag.
func combineVersions(vs []string) string {
	seen := map[string]bool{}
	var uniq []string
	for _, v := range vs {
		if v != "" && !seen[v] {
			seen[v] = true
			uniq = append(uniq, v)
		}
	}
	sort.Strings(uniq)
	return strings.Join(uniq, "+")
}
