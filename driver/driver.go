// Package driver runs the sampling loop: Gibbs sweeps, periodic
// refits of the log-linear prior and periodic checkpoints.
package driver

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	log "github.com/golang/glog"
	"github.com/oklog/ulid/v2"

	"github.com/bobonovski/lltm/checkpoint"
	"github.com/bobonovski/lltm/config"
	"github.com/bobonovski/lltm/corpus"
	"github.com/bobonovski/lltm/model"
	"github.com/bobonovski/lltm/optimizer"
	"github.com/bobonovski/lltm/prior"
)

// ConfigFile is the copy of the run config kept in the output directory
const ConfigFile = "config.yaml"

// second PCG word, the seed from the config is the first
const pcgStream = 0x9e3779b97f4a7c15

type State int

const (
	Uninitialized State = iota
	Initialized
	Sweeping
	Optimizing
	Checkpointing
	Terminated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Sweeping:
		return "sweeping"
	case Optimizing:
		return "optimizing"
	case Checkpointing:
		return "checkpointing"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Driver struct {
	cfg   *config.Config
	graph *corpus.Graph
	model *model.Model

	source *rand.PCG
	rng    *rand.Rand

	writer    *checkpoint.Writer
	runID     string
	iteration uint32
	state     State

	// OnIteration is called after every completed iteration
	OnIteration func(iteration uint32)
}

// New builds the model described by cfg over data. graph may be nil,
// vocab is only used to label top words.
func New(cfg *config.Config, data *corpus.Corpus, graph *corpus.Graph, vocab []string) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kind, err := model.GetKind(cfg.Model)
	if err != nil {
		return nil, err
	}
	stream, labels, err := kind(cfg.NumOuterLabels, cfg.NumInnerLabels, cfg.NumEvents)
	if err != nil {
		return nil, err
	}

	alpha, err := cfg.Alpha.Expand(labels.NumOuter)
	if err != nil {
		return nil, fmt.Errorf("alpha: %w", err)
	}
	betaInit, err := cfg.BetaSentiInit.Expand(labels.NumOuter)
	if err != nil {
		return nil, fmt.Errorf("betaSentiInit: %w", err)
	}

	numItems := data.ItemSize(stream)
	p, err := prior.New(cfg.Prior, prior.Params{
		NumOuter: labels.NumOuter,
		NumInner: labels.NumInner,
		NumItems: numItems,
		BetaInit: betaInit,
	})
	if err != nil {
		return nil, err
	}
	m, err := model.New(data, stream, labels, alpha, p)
	if err != nil {
		return nil, err
	}
	if graph != nil && graph.NumItems != numItems {
		return nil, fmt.Errorf("similarity graph over %d items, model samples %d %s",
			graph.NumItems, numItems, stream)
	}

	source := rand.NewPCG(cfg.Seed, pcgStream)
	return &Driver{
		cfg:    cfg,
		graph:  graph,
		model:  m,
		source: source,
		rng:    rand.New(source),
		writer: checkpoint.NewWriter(cfg.OutputDir, vocab, cfg.TopWords),
		state:  Uninitialized,
	}, nil
}

func (d *Driver) Model() *model.Model {
	return d.model
}

func (d *Driver) Iteration() uint32 {
	return d.iteration
}

func (d *Driver) State() State {
	return d.state
}

func (d *Driver) RunID() string {
	return d.runID
}

// Init assigns random labels to every occurrence and starts a new run
func (d *Driver) Init() error {
	if d.state != Uninitialized {
		return fmt.Errorf("driver already %v", d.state)
	}
	d.model.Init(d.rng)
	d.iteration = 0
	d.runID = ulid.Make().String()
	d.state = Initialized

	if err := d.saveConfig(); err != nil {
		log.Warningf("keep config copy: %v", err)
	}
	log.Infof("run %s initialized: %s model, %s prior, %d labels over %d %s",
		d.runID, d.cfg.Model, d.cfg.Prior, d.model.Labels.Size(),
		d.model.Stats.NumItems(), d.model.Stream)
	return nil
}

func (d *Driver) saveConfig() error {
	if err := os.MkdirAll(d.cfg.OutputDir, 0755); err != nil {
		return err
	}
	return d.cfg.Save(filepath.Join(d.cfg.OutputDir, ConfigFile))
}

// Resume restores the run saved in the checkpoint directory dir. Any
// mismatch between the snapshot and the configured model is returned
// as checkpoint.ErrCorruptSnapshot and leaves the driver unusable.
func (d *Driver) Resume(ctx context.Context, dir string) error {
	if d.state != Uninitialized {
		return fmt.Errorf("driver already %v", d.state)
	}
	s, err := checkpoint.Load(ctx, filepath.Join(dir, checkpoint.SnapshotFile))
	if err != nil {
		return err
	}

	corrupt := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s: %s", checkpoint.ErrCorruptSnapshot, dir, fmt.Sprintf(format, args...))
	}
	labels := d.model.Labels
	if s.Kind != d.cfg.Model || s.Prior != d.cfg.Prior {
		return corrupt("snapshot of a %s model with %s prior", s.Kind, s.Prior)
	}
	if s.NumOuter != labels.NumOuter || s.NumInner != labels.NumInner ||
		s.NumItems != d.model.Stats.NumItems() || s.NumDocs != d.model.Stats.NumDocs() {
		return corrupt("snapshot shape %dx%d over %d items and %d docs",
			s.NumOuter, s.NumInner, s.NumItems, s.NumDocs)
	}
	if len(s.Y) != d.model.Prior.Layout().Len() {
		return corrupt("%d prior values, expected %d", len(s.Y), d.model.Prior.Layout().Len())
	}
	if s.Iteration > d.cfg.NumIterations {
		return corrupt("iteration %d beyond %d iterations", s.Iteration, d.cfg.NumIterations)
	}

	if err := d.model.Restore(s.Z); err != nil {
		return corrupt("%v", err)
	}
	if !d.model.Stats.ItemLabel().Equal(s.Counts) {
		return corrupt("stored counts differ from the assignments")
	}
	if err := d.source.UnmarshalBinary(s.RNGState); err != nil {
		return corrupt("rng state: %v", err)
	}
	d.model.Prior.SetVector(s.Y)

	d.iteration = s.Iteration
	d.runID = s.RunID
	d.state = Initialized
	log.Infof("run %s resumed at iteration %d from %s", d.runID, d.iteration, dir)
	return nil
}

func (d *Driver) shouldOptimize() bool {
	return d.iteration > d.cfg.BurnIn &&
		d.iteration%d.cfg.OptimizationInterval == 0 &&
		d.iteration < d.cfg.NumIterations
}

func (d *Driver) shouldCheckpoint() bool {
	return d.iteration > d.cfg.BurnIn &&
		d.iteration%d.cfg.SavingInterval == 0 &&
		d.iteration != d.cfg.NumIterations
}

// Run sweeps until the configured number of iterations and writes a
// final checkpoint. Cancellation is honored between sweeps: the
// current iteration is checkpointed and ctx.Err() returned. A prior
// fit that does not converge stops the run with its error.
func (d *Driver) Run(ctx context.Context) error {
	if d.state != Initialized {
		return fmt.Errorf("cannot run a driver that is %v", d.state)
	}

	for d.iteration < d.cfg.NumIterations {
		if err := ctx.Err(); err != nil {
			log.Warningf("run %s interrupted at iteration %d", d.runID, d.iteration)
			d.checkpoint(context.WithoutCancel(ctx))
			d.state = Terminated
			return err
		}

		d.state = Sweeping
		d.model.Sweep(d.rng)
		d.iteration += 1

		if d.iteration%10 == 0 {
			log.Infof("iteration %d, log likelihood %f", d.iteration, d.model.Likelihood())
		}
		if d.shouldOptimize() {
			if err := d.optimize(); err != nil {
				d.state = Terminated
				return err
			}
		}
		if d.shouldCheckpoint() {
			d.checkpoint(ctx)
		}
		if d.OnIteration != nil {
			d.OnIteration(d.iteration)
		}
	}

	// the final checkpoint is attempted even if ctx ended during the
	// last sweep
	d.checkpoint(context.WithoutCancel(ctx))
	d.state = Terminated
	log.Infof("run %s finished after %d iterations", d.runID, d.iteration)
	return nil
}

// optimize refits y to the current counts and recomputes beta
func (d *Driver) optimize() error {
	d.state = Optimizing
	p := d.model.Prior

	obj := prior.NewObjective(p, d.model.Stats, d.cfg.SigmaSquare)
	if err := obj.SetGraph(d.graph, d.cfg.GraphLambdaSquare); err != nil {
		return err
	}
	settings := optimizer.Settings{
		MaxCorrections: d.cfg.LbfgsCorrections,
		Accuracy:       d.cfg.LbfgsAccuracy,
		MaxIterations:  d.cfg.LbfgsMaxIterations,
	}
	x0 := p.Vector()
	before := obj.Func(x0)
	res, err := optimizer.Optimize(x0, obj.Func, obj.Grad, settings)
	if err != nil {
		return fmt.Errorf("iteration %d: fit %s prior: %w", d.iteration, p.Name(), err)
	}
	p.SetVector(res.X)
	log.Infof("iteration %d: prior objective %f -> %f in %d l-bfgs iterations",
		d.iteration, before, res.F, res.Iterations)
	if log.V(1) {
		moved, idx := 0.0, 0
		for j := range x0 {
			if delta := math.Abs(res.X[j] - x0[j]); delta > moved {
				moved, idx = delta, j
			}
		}
		log.Infof("iteration %d: largest prior change %g at %s", d.iteration, moved, p.Layout().Describe(idx))
	}
	return nil
}

func (d *Driver) snapshot() (*checkpoint.Snapshot, error) {
	state, err := d.source.MarshalBinary()
	if err != nil {
		return nil, err
	}
	labels := d.model.Labels
	return &checkpoint.Snapshot{
		Version:   checkpoint.SchemaVersion,
		RunID:     d.runID,
		Iteration: d.iteration,
		Kind:      d.cfg.Model,
		Prior:     d.cfg.Prior,
		NumOuter:  labels.NumOuter,
		NumInner:  labels.NumInner,
		NumItems:  d.model.Stats.NumItems(),
		NumDocs:   d.model.Stats.NumDocs(),
		Seed:      d.cfg.Seed,
		RNGState:  state,
		Y:         d.model.Prior.Vector(),
		Z:         d.model.Z,
		Counts:    d.model.Stats.ItemLabel(),
	}, nil
}

// checkpoint failures are reported and the run goes on
func (d *Driver) checkpoint(ctx context.Context) {
	d.state = Checkpointing
	s, err := d.snapshot()
	if err == nil {
		_, err = d.writer.Write(ctx, d.model, s)
	}
	if err != nil {
		log.Errorf("checkpoint of iteration %d failed: %v", d.iteration, err)
	}
}
