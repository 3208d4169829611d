package checkpoint

import (
	"context"
	"database/sql"
	"encoding/csv"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobonovski/lltm/corpus"
	"github.com/bobonovski/lltm/matrix"
	"github.com/bobonovski/lltm/model"
	"github.com/bobonovski/lltm/prior"
)

func testingSnapshot() *Snapshot {
	counts := matrix.NewUint32Matrix(3, 4)
	counts.Set(0, 1, 2)
	counts.Set(2, 3, 1)
	return &Snapshot{
		Version:   SchemaVersion,
		RunID:     "01HZY8Q4J6R7X1W2V3T4S5R6Q7",
		Iteration: 50,
		Kind:      "sentiment-topic",
		Prior:     "additive",
		NumOuter:  2,
		NumInner:  2,
		NumItems:  3,
		NumDocs:   2,
		Seed:      1 << 63,
		RNGState:  []byte{'p', 'c', 'g', 1, 2, 3, 0, 255},
		Y:         []float64{0.5, -1.25, 3e-17, -4.605170185988091},
		Z:         [][]uint32{{1, 1, 3}, {}},
		Counts:    counts,
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), SnapshotFile)
	s := testingSnapshot()

	require.NoError(t, Save(ctx, path, s))
	loaded, err := Load(ctx, path)
	require.NoError(t, err)

	assert.True(t, s.Counts.Equal(loaded.Counts))
	loaded.Counts, s.Counts = nil, nil
	assert.Equal(t, s, loaded)

	// saving again replaces the old snapshot
	s.Iteration = 100
	s.Counts = matrix.NewUint32Matrix(3, 4)
	require.NoError(t, Save(ctx, path, s))
	loaded, err = Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), loaded.Iteration)
	assert.Equal(t, uint64(0), loaded.Counts.Sum())
}

func TestLoadMissingSnapshot(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), SnapshotFile))
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func corrupt(t *testing.T, stmt string) error {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), SnapshotFile)
	s := testingSnapshot()
	require.NoError(t, Save(ctx, path, s))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, stmt)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Load(ctx, path)
	return err
}

func TestLoadCorruptSnapshot(t *testing.T) {
	stmts := []string{
		"UPDATE meta SET value = '7' WHERE key = 'version'",
		"UPDATE meta SET value = 'many' WHERE key = 'numDocs'",
		"DELETE FROM rng",
		"DROP TABLE y",
		"DELETE FROM y WHERE idx = 1",
		"DELETE FROM assignments WHERE doc = 0 AND pos = 1",
		"UPDATE assignments SET label = 9 WHERE pos = 2",
		"INSERT INTO assignments (doc, pos, label) VALUES (5, 0, 0)",
		"INSERT INTO counts (item, label, count) VALUES (3, 0, 1)",
	}
	for _, stmt := range stmts {
		assert.ErrorIs(t, corrupt(t, stmt), ErrCorruptSnapshot, stmt)
	}
}

func testingModel(t *testing.T) *model.Model {
	c := &corpus.Corpus{}
	c.Add(&corpus.Document{Id: 10, Sentences: [][]uint32{{0, 1, 2}, {2}}, Rating: 4.5, HasRating: true})
	c.Add(&corpus.Document{Id: 11, Sentences: [][]uint32{{3, 3, 1}}})

	p, err := prior.NewFused(prior.Params{NumOuter: 2, NumInner: 2, NumItems: 4, BetaInit: []float64{0.1, 0.2}})
	require.NoError(t, err)
	m, err := model.New(c, corpus.Words, model.LabelSpace{NumOuter: 2, NumInner: 2}, []float64{0.5, 0.5}, p)
	require.NoError(t, err)
	m.Init(rand.New(rand.NewPCG(3, 3)))
	return m
}

func readCSV(t *testing.T, fn string) [][]string {
	f, err := os.Open(fn)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriterWritesCheckpoint(t *testing.T) {
	ctx := context.Background()
	m := testingModel(t)
	out := t.TempDir()
	w := NewWriter(out, []string{"good", "bad", "plot", "acting"}, 2)

	snap := &Snapshot{
		RunID: "run", Iteration: 20, Kind: "sentiment-topic", Prior: "fused",
		NumOuter: 2, NumInner: 2, NumItems: 4, NumDocs: 2,
		RNGState: []byte{1}, Y: m.Prior.Vector(), Z: m.Z, Counts: m.Stats.ItemLabel(),
	}
	dir, err := w.Write(ctx, m, snap)
	require.NoError(t, err)
	assert.Equal(t, Dir(out, 20), dir)

	theta := readCSV(t, filepath.Join(dir, ThetaFile))
	require.Len(t, theta, 3)
	assert.Equal(t, []string{"doc", "rating", "0_0", "0_1", "1_0", "1_1"}, theta[0])
	assert.Equal(t, []string{"10", "4.5"}, theta[1][:2])
	assert.Equal(t, []string{"11", ""}, theta[2][:2])

	phi := readCSV(t, filepath.Join(dir, PhiFile))
	require.Len(t, phi, 5)
	assert.Equal(t, []string{"item", "0_0", "0_1", "1_0", "1_1"}, phi[0])
	beta := readCSV(t, filepath.Join(dir, BetaFile))
	require.Len(t, beta, 5)
	b, err := strconv.ParseFloat(beta[4][3], 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, b, 1e-12)

	top := readCSV(t, filepath.Join(dir, TopWordsFile))
	require.Len(t, top, 1+4*2)
	assert.Equal(t, []string{"label", "rank", "item", "token", "phi"}, top[0])
	for _, record := range top[1:] {
		assert.NotEmpty(t, record[3])
	}

	loaded, err := Load(ctx, filepath.Join(dir, SnapshotFile))
	require.NoError(t, err)
	assert.Equal(t, m.Z, loaded.Z)
	assert.True(t, m.Stats.ItemLabel().Equal(loaded.Counts))
}

func TestWriterReportsPartialCheckpoint(t *testing.T) {
	m := testingModel(t)
	out := t.TempDir()
	w := NewWriter(out, nil, 2)

	// a non-empty directory where the temporary snapshot goes
	blocker := filepath.Join(Dir(out, 30), SnapshotFile+".tmp")
	require.NoError(t, os.MkdirAll(blocker, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(blocker, "x"), nil, 0644))

	snap := &Snapshot{
		RunID: "run", Iteration: 30, Kind: "sentiment-topic", Prior: "fused",
		NumOuter: 2, NumInner: 2, NumItems: 4, NumDocs: 2,
		RNGState: []byte{1}, Y: m.Prior.Vector(), Z: m.Z, Counts: m.Stats.ItemLabel(),
	}
	_, err := w.Write(context.Background(), m, snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partial checkpoint")

	_, err = os.Stat(filepath.Join(Dir(out, 30), ThetaFile))
	assert.NoError(t, err)
	_, found, err := LastIteration(out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLastIteration(t *testing.T) {
	out := t.TempDir()
	_, found, err := LastIteration(out)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = LastIteration(filepath.Join(out, "missing"))
	require.NoError(t, err)
	assert.False(t, found)

	for _, it := range []uint32{50, 200, 150} {
		dir := Dir(out, it)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, SnapshotFile), nil, 0644))
	}
	// no snapshot, not a checkpoint
	require.NoError(t, os.MkdirAll(Dir(out, 300), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(out, "logs"), 0755))

	it, found, err := LastIteration(out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint32(200), it)
}
