package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `model: sentiment-topic
prior: fused
numOuterLabels: 2
numInnerLabels: 4
alpha: [0.5, 0.25]
betaSentiInit: 0.02
numIterations: 300
corpusFile: docs.txt
seed: 42
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fused", cfg.Prior)
	assert.Equal(t, uint32(2), cfg.NumOuterLabels)
	assert.Equal(t, uint32(4), cfg.NumInnerLabels)
	assert.Equal(t, Values{0.5, 0.25}, cfg.Alpha)
	assert.Equal(t, Values{0.02}, cfg.BetaSentiInit)
	assert.Equal(t, uint32(300), cfg.NumIterations)
	assert.Equal(t, uint64(42), cfg.Seed)
	// untouched keys keep their defaults
	assert.Equal(t, Default().BurnIn, cfg.BurnIn)
	assert.Equal(t, Default().LbfgsAccuracy, cfg.LbfgsAccuracy)

	beta, err := cfg.BetaSentiInit.Expand(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.02, 0.02}, beta)
}

func TestLoadEventModel(t *testing.T) {
	path := writeConfig(t, `model: event
numEvents: 5
corpusFile: docs.txt
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	numOuter, numInner := cfg.Dims()
	assert.Equal(t, uint32(5), numOuter)
	assert.Equal(t, uint32(1), numInner)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "numIterations: [1, 2\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "numIterations: 10\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.CorpusFile = "docs.txt"
		return cfg
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(c *Config){
		"unknown model":        func(c *Config) { c.Model = "lda" },
		"unknown prior":        func(c *Config) { c.Prior = "sparse" },
		"zero inner":           func(c *Config) { c.NumInnerLabels = 0 },
		"zero events":          func(c *Config) { c.Model = "event"; c.NumEvents = 0 },
		"alpha length":         func(c *Config) { c.Alpha = Values{0.1, 0.1} },
		"negative alpha":       func(c *Config) { c.Alpha = Values{-1} },
		"zero beta":            func(c *Config) { c.BetaSentiInit = Values{0} },
		"zero iterations":      func(c *Config) { c.NumIterations = 0 },
		"zero interval":        func(c *Config) { c.SavingInterval = 0 },
		"bad accuracy":         func(c *Config) { c.LbfgsAccuracy = 0 },
		"bad sigma":            func(c *Config) { c.SigmaSquare = -1 },
		"graph without lambda": func(c *Config) { c.SimilarityGraphEdgesFile = "g.txt"; c.GraphLambdaSquare = 0 },
		"no corpus":            func(c *Config) { c.CorpusFile = "" },
		"no output":            func(c *Config) { c.OutputDir = "" },
		"negative top words":   func(c *Config) { c.TopWords = -3 },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, name)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.CorpusFile = "docs.txt"
	cfg.Alpha = Values{0.3, 0.2, 0.1}

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
