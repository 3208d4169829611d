// Package config holds the settings of a sampling run. Settings are
// read from a YAML file, unset keys keep their defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// Values is a per outer label list of reals. A single scalar in the
// file applies to every outer label.
type Values []float64

func (v *Values) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var x float64
		if err := node.Decode(&x); err != nil {
			return err
		}
		*v = Values{x}
		return nil
	}
	var xs []float64
	if err := node.Decode(&xs); err != nil {
		return err
	}
	*v = xs
	return nil
}

// Expand returns one value per outer label
func (v Values) Expand(n uint32) ([]float64, error) {
	if len(v) == 1 {
		out := make([]float64, n)
		for i := range out {
			out[i] = v[0]
		}
		return out, nil
	}
	if uint32(len(v)) != n {
		return nil, fmt.Errorf("%d values for %d outer labels", len(v), n)
	}
	return append([]float64(nil), v...), nil
}

type Config struct {
	// model kind, sentiment-topic or event
	Model string `yaml:"model"`
	// prior strategy, additive or fused
	Prior string `yaml:"prior"`

	NumOuterLabels uint32 `yaml:"numOuterLabels"`
	NumInnerLabels uint32 `yaml:"numInnerLabels"`
	NumEvents      uint32 `yaml:"numEvents"`

	Alpha         Values `yaml:"alpha"`
	BetaSentiInit Values `yaml:"betaSentiInit"`

	NumIterations        uint32 `yaml:"numIterations"`
	BurnIn               uint32 `yaml:"burnIn"`
	OptimizationInterval uint32 `yaml:"optimizationInterval"`
	SavingInterval       uint32 `yaml:"savingInterval"`

	LbfgsAccuracy      float64 `yaml:"lbfgsAccuracy"`
	LbfgsCorrections   int     `yaml:"lbfgsCorrections"`
	LbfgsMaxIterations int     `yaml:"lbfgsMaxIterations"`
	SigmaSquare        float64 `yaml:"sigmaSquare"`

	SimilarityGraphEdgesFile string  `yaml:"similarityGraphEdgesFile"`
	GraphLambdaSquare        float64 `yaml:"graphLambdaSquare"`

	CorpusFile     string `yaml:"corpusFile"`
	VocabularyFile string `yaml:"vocabularyFile"`
	OutputDir      string `yaml:"outputDir"`
	TopWords       int    `yaml:"topWords"`
	Seed           uint64 `yaml:"seed"`
}

func Default() *Config {
	return &Config{
		Model:                "sentiment-topic",
		Prior:                "additive",
		NumOuterLabels:       3,
		NumInnerLabels:       10,
		Alpha:                Values{0.1},
		BetaSentiInit:        Values{0.01},
		NumIterations:        1000,
		BurnIn:               200,
		OptimizationInterval: 50,
		SavingInterval:       200,
		LbfgsAccuracy:        1e-4,
		LbfgsCorrections:     5,
		LbfgsMaxIterations:   200,
		SigmaSquare:          1.0,
		GraphLambdaSquare:    1.0,
		OutputDir:            "output",
		TopWords:             20,
		Seed:                 1,
	}
}

// Load reads path over the defaults and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Dims returns the outer and inner label counts of the configured
// model kind, event models are flat over the events
func (c *Config) Dims() (uint32, uint32) {
	if c.Model == "event" {
		return c.NumEvents, 1
	}
	return c.NumOuterLabels, c.NumInnerLabels
}

func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	switch c.Model {
	case "sentiment-topic":
		if c.NumOuterLabels == 0 || c.NumInnerLabels == 0 {
			return invalid("numOuterLabels and numInnerLabels must be positive")
		}
	case "event":
		if c.NumEvents == 0 {
			return invalid("numEvents must be positive")
		}
	default:
		return invalid("unknown model %q", c.Model)
	}
	if c.Prior != "additive" && c.Prior != "fused" {
		return invalid("unknown prior %q", c.Prior)
	}

	numOuter, _ := c.Dims()
	alpha, err := c.Alpha.Expand(numOuter)
	if err != nil {
		return invalid("alpha: %v", err)
	}
	for _, a := range alpha {
		if !(a > 0) {
			return invalid("alpha must be positive, got %v", a)
		}
	}
	beta, err := c.BetaSentiInit.Expand(numOuter)
	if err != nil {
		return invalid("betaSentiInit: %v", err)
	}
	for _, b := range beta {
		if !(b > 0) {
			return invalid("betaSentiInit must be positive, got %v", b)
		}
	}

	if c.NumIterations == 0 {
		return invalid("numIterations must be positive")
	}
	if c.OptimizationInterval == 0 || c.SavingInterval == 0 {
		return invalid("optimizationInterval and savingInterval must be positive")
	}
	if !(c.LbfgsAccuracy > 0) || c.LbfgsCorrections <= 0 || c.LbfgsMaxIterations <= 0 {
		return invalid("lbfgs settings must be positive")
	}
	if !(c.SigmaSquare > 0) {
		return invalid("sigmaSquare must be positive")
	}
	if c.SimilarityGraphEdgesFile != "" && !(c.GraphLambdaSquare > 0) {
		return invalid("graphLambdaSquare must be positive with a similarity graph")
	}
	if c.CorpusFile == "" {
		return invalid("corpusFile is required")
	}
	if c.OutputDir == "" {
		return invalid("outputDir is required")
	}
	if c.TopWords < 0 {
		return invalid("topWords must not be negative")
	}
	return nil
}

// Save writes the config as YAML, the driver keeps a copy next to
// its checkpoints
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
