// Package config loads the HCL run configuration: dataset location, split
// parameters, tuning cache, and one model block per comparison entry. A
// missing file falls back to the built-in default comparison.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

// Config is the decoded run configuration.
type Config struct {
	Dataset DatasetConfig
	Split   SplitConfig
	Cache   CacheConfig
	Models  []ModelConfig
}

// DatasetConfig locates the CSV and names the smoking-history sentinel
// whose rows are dropped during cleaning.
type DatasetConfig struct {
	Path     string `hcl:"path"`
	Sentinel string `hcl:"sentinel,optional"`
}

// SplitConfig controls the train/test split and cross-validation folds.
type SplitConfig struct {
	TestFraction float64 `hcl:"test_fraction,optional"`
	Folds        int     `hcl:"folds,optional"`
	Seed         uint64  `hcl:"seed,optional"`
}

// CacheConfig locates the SQLite tuning cache. An empty path disables it.
type CacheConfig struct {
	Path string `hcl:"path,optional"`
}

// ModelConfig is one model block: family, display name, whether its recipe
// standardizes numeric columns, and the hyperparameter grid.
type ModelConfig struct {
	Family    string
	Name      string
	Normalize bool
	Grid      map[string][]float64
}

// hclRoot mirrors the HCL file structure for gohcl decoding.
type hclRoot struct {
	Dataset *DatasetConfig `hcl:"dataset,block"`
	Split   *SplitConfig   `hcl:"split,block"`
	Cache   *CacheConfig   `hcl:"cache,block"`
	Models  []hclModel     `hcl:"model,block"`
}

type hclModel struct {
	Family    string   `hcl:"family,label"`
	Name      string   `hcl:"name,label"`
	Normalize *bool    `hcl:"normalize,optional"`
	Grid      *hclGrid `hcl:"grid,block"`
}

// hclGrid keeps the grid attributes undecoded; hyperparameter names vary
// per family, so they are read as raw attributes below.
type hclGrid struct {
	Body hcl.Body `hcl:",remain"`
}

// Families whose recipes standardize numeric columns by default. Distance
// and margin based models need it; trees and Gaussians do not.
var normalizeByDefault = map[string]bool{
	"logistic":   true,
	"elasticnet": true,
	"knn":        true,
	"svm_rbf":    true,
}

// Load reads and decodes an HCL run file. An empty path returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, diabriskErrors.Wrapf(err, "reading config %s", path)
	}
	return Parse(src, path)
}

// Parse decodes HCL source into a Config.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diabriskErrors.Newf("parsing %s: %s", filename, diags.Error())
	}

	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, diabriskErrors.Newf("decoding %s: %s", filename, diags.Error())
	}

	cfg := Default()
	if root.Dataset != nil {
		cfg.Dataset = *root.Dataset
		if cfg.Dataset.Sentinel == "" {
			cfg.Dataset.Sentinel = "No Info"
		}
	}
	if root.Split != nil {
		cfg.Split = *root.Split
		applySplitDefaults(&cfg.Split)
	}
	if root.Cache != nil {
		cfg.Cache = *root.Cache
	}

	if len(root.Models) > 0 {
		cfg.Models = cfg.Models[:0]
		for _, m := range root.Models {
			mc := ModelConfig{
				Family:    m.Family,
				Name:      m.Name,
				Normalize: normalizeByDefault[m.Family],
			}
			if m.Normalize != nil {
				mc.Normalize = *m.Normalize
			}
			if m.Grid != nil {
				grid, err := decodeGrid(m.Grid.Body)
				if err != nil {
					return nil, diabriskErrors.Wrapf(err, "model %q %q", m.Family, m.Name)
				}
				mc.Grid = grid
			}
			cfg.Models = append(cfg.Models, mc)
		}
	}

	return cfg, cfg.Validate()
}

// decodeGrid turns the grid block's attributes into named value lists. A
// scalar attribute becomes a one-element list.
func decodeGrid(body hcl.Body) (map[string][]float64, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diabriskErrors.Newf("grid attributes: %s", diags.Error())
	}

	grid := make(map[string][]float64, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diabriskErrors.Newf("grid attribute %q: %s", name, diags.Error())
		}
		values, err := ctyToFloats(val)
		if err != nil {
			return nil, diabriskErrors.Wrapf(err, "grid attribute %q", name)
		}
		grid[name] = values
	}
	return grid, nil
}

func ctyToFloats(val cty.Value) ([]float64, error) {
	if val.Type().IsTupleType() || val.Type().IsListType() {
		var out []float64
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			f, err := ctyToFloat(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
		return out, nil
	}
	f, err := ctyToFloat(val)
	if err != nil {
		return nil, err
	}
	return []float64{f}, nil
}

func ctyToFloat(val cty.Value) (float64, error) {
	converted, err := convert.Convert(val, cty.Number)
	if err != nil {
		return 0, diabriskErrors.Wrap(err, "value is not numeric")
	}
	f, _ := converted.AsBigFloat().Float64()
	return f, nil
}

// Default returns the built-in comparison: all eight model entries with
// the grids the report is normally run with.
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Path:     "data/diabetes.csv",
			Sentinel: "No Info",
		},
		Split: SplitConfig{
			TestFraction: 0.25,
			Folds:        5,
			Seed:         42,
		},
		Models: []ModelConfig{
			{Family: "logistic", Name: "baseline", Normalize: true},
			{Family: "elasticnet", Name: "elastic", Normalize: true, Grid: map[string][]float64{
				"c":        {0.01, 0.1, 1, 10},
				"l1_ratio": {0.25, 0.5, 0.75},
			}},
			{Family: "lda", Name: "lda"},
			{Family: "qda", Name: "qda"},
			{Family: "knn", Name: "knn", Normalize: true, Grid: map[string][]float64{
				"k": {5, 10, 15, 20, 25},
			}},
			{Family: "rand_forest", Name: "forest", Grid: map[string][]float64{
				"trees": {100},
				"mtry":  {3, 4},
				"min_n": {1, 5},
			}},
			{Family: "boost_tree", Name: "boost", Grid: map[string][]float64{
				"trees":         {100},
				"depth":         {2, 3},
				"learning_rate": {0.05, 0.1},
			}},
			{Family: "svm_rbf", Name: "svm", Normalize: true, Grid: map[string][]float64{
				"c":     {0.1, 1, 10},
				"gamma": {0.01, 0.1},
			}},
		},
	}
}

func applySplitDefaults(s *SplitConfig) {
	if s.TestFraction <= 0 || s.TestFraction >= 1 {
		s.TestFraction = 0.25
	}
	if s.Folds < 2 {
		s.Folds = 5
	}
	if s.Seed == 0 {
		s.Seed = 42
	}
}

// Validate checks the decoded configuration.
func (c *Config) Validate() error {
	if c.Dataset.Path == "" {
		return diabriskErrors.NewValidationError("dataset.path", "must be set", "")
	}
	if len(c.Models) == 0 {
		return diabriskErrors.NewValidationError("model", "at least one model block is required", 0)
	}
	seen := make(map[string]bool)
	for _, m := range c.Models {
		id := m.Family + "/" + m.Name
		if seen[id] {
			return diabriskErrors.NewValidationError("model", "duplicate model block", id)
		}
		seen[id] = true
	}
	return nil
}

// Hash returns a stable digest of everything that influences tuning
// scores. The cache keys results by it, so changing the split or a grid
// invalidates prior entries.
func (c *Config) Hash() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sentinel=%s;test=%g;folds=%d;seed=%d;",
		c.Dataset.Sentinel, c.Split.TestFraction, c.Split.Folds, c.Split.Seed)
	for _, m := range c.Models {
		fmt.Fprintf(&b, "model=%s/%s;norm=%t;", m.Family, m.Name, m.Normalize)
		names := make([]string, 0, len(m.Grid))
		for name := range m.Grid {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "%s=%v;", name, m.Grid[name])
		}
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
