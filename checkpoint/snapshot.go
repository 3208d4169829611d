package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/bobonovski/lltm/matrix"
)

// SchemaVersion is bumped on every incompatible change of the
// snapshot tables
const SchemaVersion = 1

var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Snapshot is everything needed to continue a run: the label of every
// occurrence, the item-label counts they imply, the prior vector y,
// the iteration and the state of the random source
type Snapshot struct {
	Version   int
	RunID     string
	Iteration uint32
	Kind      string
	Prior     string
	NumOuter  uint32
	NumInner  uint32
	NumItems  uint32
	NumDocs   uint32
	Seed      uint64
	RNGState  []byte
	Y         []float64
	Z         [][]uint32
	// item x label
	Counts *matrix.Uint32Matrix
}

const schema = `
CREATE TABLE meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE rng (
	state BLOB NOT NULL
);

CREATE TABLE y (
	idx INTEGER PRIMARY KEY,
	value REAL NOT NULL
);

CREATE TABLE assignments (
	doc INTEGER NOT NULL,
	pos INTEGER NOT NULL,
	label INTEGER NOT NULL,
	PRIMARY KEY(doc, pos)
);

CREATE TABLE counts (
	item INTEGER NOT NULL,
	label INTEGER NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY(item, label)
);
`

// Save writes s to a fresh database at path. The file only appears
// once it is complete, an existing snapshot at path is replaced.
func Save(ctx context.Context, path string, s *Snapshot) error {
	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return err
	}

	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		return err
	}
	if err := write(ctx, db, s); err != nil {
		db.Close()
		os.Remove(tmp)
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	if err := db.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func write(ctx context.Context, db *sql.DB, s *Snapshot) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	meta := map[string]string{
		"version":   strconv.Itoa(SchemaVersion),
		"runId":     s.RunID,
		"iteration": strconv.FormatUint(uint64(s.Iteration), 10),
		"kind":      s.Kind,
		"prior":     s.Prior,
		"numOuter":  strconv.FormatUint(uint64(s.NumOuter), 10),
		"numInner":  strconv.FormatUint(uint64(s.NumInner), 10),
		"numItems":  strconv.FormatUint(uint64(s.NumItems), 10),
		"numDocs":   strconv.FormatUint(uint64(s.NumDocs), 10),
		"seed":      strconv.FormatUint(s.Seed, 10),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO rng (state) VALUES (?)", s.RNGState); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO y (idx, value) VALUES (?, ?)")
	if err != nil {
		return err
	}
	for i, v := range s.Y {
		if _, err := stmt.ExecContext(ctx, i, v); err != nil {
			stmt.Close()
			return err
		}
	}
	stmt.Close()

	stmt, err = tx.PrepareContext(ctx, "INSERT INTO assignments (doc, pos, label) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	for d, z := range s.Z {
		for i, k := range z {
			if _, err := stmt.ExecContext(ctx, d, i, k); err != nil {
				stmt.Close()
				return err
			}
		}
	}
	stmt.Close()

	stmt, err = tx.PrepareContext(ctx, "INSERT INTO counts (item, label, count) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	rows, cols := s.Counts.Shape()
	for v := uint32(0); v < rows; v += 1 {
		for k := uint32(0); k < cols; k += 1 {
			c := s.Counts.Get(v, k)
			if c == 0 {
				continue
			}
			if _, err := stmt.ExecContext(ctx, v, k, c); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Load reads the snapshot at path. Structural problems, such as a
// missing table, a schema version mismatch or assignments that do not
// fit the stored dimensions, are reported as ErrCorruptSnapshot.
func Load(ctx context.Context, path string) (*Snapshot, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	s, err := read(ctx, db)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptSnapshot, path, err)
	}
	return s, nil
}

func read(ctx context.Context, db *sql.DB) (*Snapshot, error) {
	meta := make(map[string]string)
	rows, err := db.QueryContext(ctx, "SELECT key, value FROM meta")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, err
		}
		meta[k] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s := &Snapshot{RunID: meta["runId"], Kind: meta["kind"], Prior: meta["prior"]}
	if s.Version, err = strconv.Atoi(meta["version"]); err != nil {
		return nil, fmt.Errorf("version: %v", err)
	}
	if s.Version != SchemaVersion {
		return nil, fmt.Errorf("schema version %d, expected %d", s.Version, SchemaVersion)
	}
	fields := []struct {
		key string
		dst *uint32
	}{
		{"iteration", &s.Iteration},
		{"numOuter", &s.NumOuter},
		{"numInner", &s.NumInner},
		{"numItems", &s.NumItems},
		{"numDocs", &s.NumDocs},
	}
	for _, f := range fields {
		v, err := strconv.ParseUint(meta[f.key], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", f.key, err)
		}
		*f.dst = uint32(v)
	}
	if s.Seed, err = strconv.ParseUint(meta["seed"], 10, 64); err != nil {
		return nil, fmt.Errorf("seed: %v", err)
	}
	if s.NumOuter == 0 || s.NumInner == 0 || s.NumItems == 0 || s.NumDocs == 0 {
		return nil, fmt.Errorf("empty dimension")
	}
	numLabels := s.NumOuter * s.NumInner

	if err := db.QueryRowContext(ctx, "SELECT state FROM rng").Scan(&s.RNGState); err != nil {
		return nil, fmt.Errorf("rng: %v", err)
	}

	if err := readY(ctx, db, s); err != nil {
		return nil, err
	}
	if err := readAssignments(ctx, db, s, numLabels); err != nil {
		return nil, err
	}
	if err := readCounts(ctx, db, s, numLabels); err != nil {
		return nil, err
	}
	return s, nil
}

func readY(ctx context.Context, db *sql.DB, s *Snapshot) error {
	rows, err := db.QueryContext(ctx, "SELECT idx, value FROM y ORDER BY idx")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var idx int
		var v float64
		if err := rows.Scan(&idx, &v); err != nil {
			return err
		}
		if idx != len(s.Y) {
			return fmt.Errorf("y index %d missing", len(s.Y))
		}
		s.Y = append(s.Y, v)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(s.Y) == 0 {
		return fmt.Errorf("empty y")
	}
	return nil
}

func readAssignments(ctx context.Context, db *sql.DB, s *Snapshot, numLabels uint32) error {
	s.Z = make([][]uint32, s.NumDocs)
	for d := range s.Z {
		s.Z[d] = []uint32{}
	}
	rows, err := db.QueryContext(ctx, "SELECT doc, pos, label FROM assignments ORDER BY doc, pos")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var doc, pos, label uint32
		if err := rows.Scan(&doc, &pos, &label); err != nil {
			return err
		}
		if doc >= s.NumDocs {
			return fmt.Errorf("assignment of doc %d, snapshot has %d docs", doc, s.NumDocs)
		}
		if pos != uint32(len(s.Z[doc])) {
			return fmt.Errorf("doc %d: assignment %d missing", doc, len(s.Z[doc]))
		}
		if label >= numLabels {
			return fmt.Errorf("doc %d: label %d outside %d labels", doc, label, numLabels)
		}
		s.Z[doc] = append(s.Z[doc], label)
	}
	return rows.Err()
}

func readCounts(ctx context.Context, db *sql.DB, s *Snapshot, numLabels uint32) error {
	s.Counts = matrix.NewUint32Matrix(s.NumItems, numLabels)
	rows, err := db.QueryContext(ctx, "SELECT item, label, count FROM counts")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var item, label, count uint32
		if err := rows.Scan(&item, &label, &count); err != nil {
			return err
		}
		if item >= s.NumItems || label >= numLabels {
			return fmt.Errorf("count at (%d, %d) outside %dx%d", item, label, s.NumItems, numLabels)
		}
		s.Counts.Set(item, label, count)
	}
	return rows.Err()
}
