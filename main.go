package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/cheggaaa/pb"
	log "github.com/golang/glog"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/bobonovski/lltm/checkpoint"
	"github.com/bobonovski/lltm/config"
	"github.com/bobonovski/lltm/corpus"
	"github.com/bobonovski/lltm/driver"
	"github.com/bobonovski/lltm/model"
	"github.com/bobonovski/lltm/prior"
)

var (
	app = kingpin.New("lltm", "Collapsed Gibbs sampler for topic models with a log-linear Dirichlet prior.")

	verbosity   = app.Flag("v", "log verbosity").Default("0").Int()
	logToStderr = app.Flag("logtostderr", "log to standard error instead of files").Default("true").Bool()
	progress    = app.Flag("progress", "show a progress bar").Bool()

	train      = app.Command("train", "start a new run")
	configFile = train.Flag("config", "YAML run config").Required().ExistingFile()
	modelKind  = train.Flag("model", "model kind, overrides the config").Enum(model.Kinds()...)
	priorName  = train.Flag("prior", "prior strategy, overrides the config").Enum(prior.Names()...)
	corpusFile = train.Flag("corpus", "corpus file, overrides the config").String()
	graphFile  = train.Flag("graph", "similarity graph edges file, overrides the config").String()
	vocabFile  = train.Flag("vocabulary", "vocabulary file, overrides the config").String()
	outputDir  = train.Flag("output", "output directory, overrides the config").String()
	seed       = train.Flag("seed", "random seed, overrides the config").String()

	resume          = app.Command("resume", "continue a run from its latest checkpoint")
	runDir          = resume.Arg("dir", "output directory of the run").Required().ExistingDir()
	resumeIteration = resume.Flag("iteration", "checkpoint to resume from instead of the latest").String()
	numIterations   = resume.Flag("iterations", "raise the total number of iterations").Uint32()
)

func setupLogging() {
	flag.Set("logtostderr", strconv.FormatBool(*logToStderr))
	flag.Set("v", strconv.Itoa(*verbosity))
	flag.CommandLine.Parse(nil)
}

func trainConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	overrides := []struct {
		value string
		dst   *string
	}{
		{*modelKind, &cfg.Model},
		{*priorName, &cfg.Prior},
		{*corpusFile, &cfg.CorpusFile},
		{*graphFile, &cfg.SimilarityGraphEdgesFile},
		{*vocabFile, &cfg.VocabularyFile},
		{*outputDir, &cfg.OutputDir},
	}
	for _, o := range overrides {
		if o.value != "" {
			*o.dst = o.value
		}
	}
	if *seed != "" {
		if cfg.Seed, err = strconv.ParseUint(*seed, 10, 64); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}

// newDriver loads the inputs named by cfg
func newDriver(cfg *config.Config) (*driver.Driver, error) {
	data := &corpus.Corpus{}
	if err := data.Load(cfg.CorpusFile); err != nil {
		return nil, err
	}

	var vocab []string
	if cfg.VocabularyFile != "" {
		var err error
		if vocab, err = corpus.LoadVocabulary(cfg.VocabularyFile); err != nil {
			return nil, err
		}
	}

	var graph *corpus.Graph
	if cfg.SimilarityGraphEdgesFile != "" {
		kind, err := model.GetKind(cfg.Model)
		if err != nil {
			return nil, err
		}
		stream, _, err := kind(cfg.NumOuterLabels, cfg.NumInnerLabels, cfg.NumEvents)
		if err != nil {
			return nil, err
		}
		if graph, err = corpus.LoadGraph(cfg.SimilarityGraphEdgesFile, data.ItemSize(stream)); err != nil {
			return nil, err
		}
		log.Infof("similarity graph with %d edges", len(graph.Edges))
	}

	return driver.New(cfg, data, graph, vocab)
}

func runTrain(ctx context.Context) error {
	cfg, err := trainConfig()
	if err != nil {
		return err
	}
	d, err := newDriver(cfg)
	if err != nil {
		return err
	}
	if err := d.Init(); err != nil {
		return err
	}
	return run(ctx, d, cfg)
}

func runResume(ctx context.Context) error {
	cfg, err := config.Load(filepath.Join(*runDir, driver.ConfigFile))
	if err != nil {
		return err
	}
	cfg.OutputDir = *runDir
	if *numIterations != 0 {
		cfg.NumIterations = *numIterations
	}

	iteration, err := resolveIteration(*resumeIteration, *runDir)
	if err != nil {
		return err
	}

	d, err := newDriver(cfg)
	if err != nil {
		return err
	}
	if err := d.Resume(ctx, checkpoint.Dir(*runDir, iteration)); err != nil {
		return err
	}
	return run(ctx, d, cfg)
}

// resolveIteration picks the checkpoint named by value, or the latest one
// under dir when value is empty. iteration 0 is a valid checkpoint.
func resolveIteration(value, dir string) (uint32, error) {
	if value != "" {
		it, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("iteration %q: %w", value, err)
		}
		return uint32(it), nil
	}
	it, found, err := checkpoint.LastIteration(dir)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("no checkpoint under %s", dir)
	}
	return it, nil
}

func run(ctx context.Context, d *driver.Driver, cfg *config.Config) error {
	if *progress {
		bar := pb.StartNew(int(cfg.NumIterations))
		bar.Set(int(d.Iteration()))
		d.OnIteration = func(uint32) { bar.Increment() }
		defer bar.Finish()
	}
	return d.Run(ctx)
}

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	setupLogging()
	defer log.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case train.FullCommand():
		err = runTrain(ctx)
	case resume.FullCommand():
		err = runResume(ctx)
	}

	if errors.Is(err, context.Canceled) {
		log.Warningf("interrupted, resume with: lltm resume <dir>")
		return
	}
	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}
