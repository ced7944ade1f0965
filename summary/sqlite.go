package summary

import (
	"database/sql"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Store persists summaries in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. Use ":memory:" for a
// throwaway store.
func Open(path string) (*Store, error) {
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "summary: open database")
	}
	// a memory database lives and dies with its connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "summary: pragma %q", p)
		}
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "summary: migration")
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id         TEXT PRIMARY KEY,
			n_chains   INTEGER NOT NULL,
			n_dim      INTEGER NOT NULL,
			n_epochs   INTEGER NOT NULL,
			created_at TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS steps (
			run_id   TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			phase    TEXT    NOT NULL,
			chain    INTEGER NOT NULL,
			step     INTEGER NOT NULL,
			log_prob REAL,
			PRIMARY KEY (run_id, phase, chain, step)
		);

		CREATE TABLE IF NOT EXISTS positions (
			run_id TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			phase  TEXT    NOT NULL,
			chain  INTEGER NOT NULL,
			step   INTEGER NOT NULL,
			dim    INTEGER NOT NULL,
			value  REAL,
			PRIMARY KEY (run_id, phase, chain, step, dim)
		);

		CREATE TABLE IF NOT EXISTS acceptance (
			run_id TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			phase  TEXT    NOT NULL,
			kind   TEXT    NOT NULL,
			chain  INTEGER NOT NULL,
			step   INTEGER NOT NULL,
			value  REAL    NOT NULL,
			PRIMARY KEY (run_id, phase, kind, chain, step)
		);

		CREATE TABLE IF NOT EXISTS losses (
			run_id TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			round  INTEGER NOT NULL,
			epoch  INTEGER NOT NULL,
			value  REAL,
			PRIMARY KEY (run_id, round, epoch)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// nullable maps NaN to SQL NULL, SQLite has no NaN.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// Export writes the whole summary under runID in a single transaction.
func (s *Store) Export(runID uuid.UUID, sum *Summary) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "summary: begin")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var p = sum.Training
	if _, err = tx.Exec(`INSERT INTO runs (id, n_chains, n_dim, n_epochs, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID.String(), p.nChains, p.nDim, p.nEpochs, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return errors.Wrapf(err, "summary: insert run %s", runID)
	}
	for _, ph := range []struct {
		name  string
		phase *Phase
	}{{"training", sum.Training}, {"production", sum.Production}} {
		if err = exportPhase(tx, runID.String(), ph.name, ph.phase); err != nil {
			return errors.Wrapf(err, "summary: export %s", ph.name)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "summary: commit")
	}
	return nil
}

func exportPhase(tx *sql.Tx, runID, name string, p *Phase) error {
	step, err := tx.Prepare(`INSERT INTO steps (run_id, phase, chain, step, log_prob) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer step.Close()
	pos, err := tx.Prepare(`INSERT INTO positions (run_id, phase, chain, step, dim, value) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer pos.Close()
	acc, err := tx.Prepare(`INSERT INTO acceptance (run_id, phase, kind, chain, step, value) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer acc.Close()

	for c := 0; c < p.nChains; c++ {
		for i, lp := range p.logProb[c] {
			if _, err := step.Exec(runID, name, c, i, nullable(lp)); err != nil {
				return err
			}
			for d, v := range p.At(c, i) {
				if _, err := pos.Exec(runID, name, c, i, d, nullable(v)); err != nil {
					return err
				}
			}
		}
		for i, v := range p.localAccs[c] {
			if _, err := acc.Exec(runID, name, "local", c, i, v); err != nil {
				return err
			}
		}
		for i, v := range p.globalAccs[c] {
			if _, err := acc.Exec(runID, name, "global", c, i, v); err != nil {
				return err
			}
		}
	}
	for r, losses := range p.lossVals {
		for e, v := range losses {
			if _, err := tx.Exec(`INSERT INTO losses (run_id, round, epoch, value) VALUES (?, ?, ?, ?)`,
				runID, r, e, nullable(v)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Runs lists the stored run IDs, oldest first.
func (s *Store) Runs() ([]uuid.UUID, error) {
	rows, err := s.db.Query(`SELECT id FROM runs ORDER BY created_at, rowid`)
	if err != nil {
		return nil, errors.Wrap(err, "summary: list runs")
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "summary: scan run")
		}
		u, err := uuid.Parse(id)
		if err != nil {
			return nil, errors.Wrapf(err, "summary: run id %q", id)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// LogProb reads back the log probabilities of one chain of a stored phase.
// Missing values read as NaN.
func (s *Store) LogProb(runID uuid.UUID, training bool, chain int) ([]float64, error) {
	var name = "production"
	if training {
		name = "training"
	}
	rows, err := s.db.Query(`SELECT log_prob FROM steps WHERE run_id = ? AND phase = ? AND chain = ? ORDER BY step`,
		runID.String(), name, chain)
	if err != nil {
		return nil, errors.Wrap(err, "summary: query steps")
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var v sql.NullFloat64
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "summary: scan step")
		}
		if v.Valid {
			out = append(out, v.Float64)
		} else {
			out = append(out, math.NaN())
		}
	}
	return out, rows.Err()
}

// Losses reads back the loss histories of a stored run as [round][epoch].
func (s *Store) Losses(runID uuid.UUID) ([][]float64, error) {
	rows, err := s.db.Query(`SELECT round, value FROM losses WHERE run_id = ? ORDER BY round, epoch`, runID.String())
	if err != nil {
		return nil, errors.Wrap(err, "summary: query losses")
	}
	defer rows.Close()
	var out [][]float64
	for rows.Next() {
		var round int
		var v sql.NullFloat64
		if err := rows.Scan(&round, &v); err != nil {
			return nil, errors.Wrap(err, "summary: scan loss")
		}
		for len(out) <= round {
			out = append(out, nil)
		}
		if v.Valid {
			out[round] = append(out[round], v.Float64)
		} else {
			out[round] = append(out[round], math.NaN())
		}
	}
	return out, rows.Err()
}
