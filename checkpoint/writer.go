// Package checkpoint persists the state of a sampling run. Every
// milestone iteration gets its own directory holding the point
// estimates as CSV and a SQLite snapshot to resume from.
package checkpoint

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	log "github.com/golang/glog"

	"github.com/bobonovski/lltm/model"
)

const (
	ThetaFile    = "theta.csv"
	PhiFile      = "phi.csv"
	BetaFile     = "beta.csv"
	TopWordsFile = "topWords.csv"
	SnapshotFile = "snapshot.db"
)

// Dir is the checkpoint directory of iteration under outputDir
func Dir(outputDir string, iteration uint32) string {
	return filepath.Join(outputDir, strconv.FormatUint(uint64(iteration), 10))
}

type Writer struct {
	OutputDir string
	// tokens of word ids, optional
	Vocab    []string
	TopWords int
}

func NewWriter(outputDir string, vocab []string, topWords int) *Writer {
	return &Writer{OutputDir: outputDir, Vocab: vocab, TopWords: topWords}
}

// Write saves the estimates of m and the snapshot s into the
// directory of s.Iteration and returns that directory
func (w *Writer) Write(ctx context.Context, m *model.Model, s *Snapshot) (string, error) {
	dir := Dir(w.OutputDir, s.Iteration)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	if err := w.write(ctx, dir, m, s); err != nil {
		// estimates may already be on disk, but without a snapshot the
		// directory cannot be resumed and LastIteration skips it
		log.Warningf("partial checkpoint left in %s", dir)
		return "", fmt.Errorf("partial checkpoint %s: %w", dir, err)
	}
	log.Infof("checkpoint of iteration %d written to %s", s.Iteration, dir)
	return dir, nil
}

func (w *Writer) write(ctx context.Context, dir string, m *model.Model, s *Snapshot) error {
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{ThetaFile, func(f io.Writer) error { return WriteTheta(f, m) }},
		{PhiFile, func(f io.Writer) error { return WriteItemMatrix(f, m.Labels, m.Phi()) }},
		{BetaFile, func(f io.Writer) error { return WriteItemMatrix(f, m.Labels, m.Beta()) }},
		{TopWordsFile, func(f io.Writer) error { return WriteTopItems(f, m, w.TopWords, w.Vocab) }},
	}
	for _, file := range files {
		if err := writeFile(filepath.Join(dir, file.name), file.write); err != nil {
			return err
		}
	}

	return Save(ctx, filepath.Join(dir, SnapshotFile), s)
}

func writeFile(fn string, write func(io.Writer) error) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return f.Close()
}

// LastIteration returns the largest iteration under outputDir that
// has a snapshot, found is false when there is none
func LastIteration(outputDir string) (iteration uint32, found bool, err error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		it, err := strconv.ParseUint(e.Name(), 10, 32)
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(outputDir, e.Name(), SnapshotFile)); err != nil {
			continue
		}
		if !found || uint32(it) > iteration {
			iteration, found = uint32(it), true
		}
	}
	return iteration, found, nil
}
