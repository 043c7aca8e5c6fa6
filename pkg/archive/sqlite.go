package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/segmentio/ksuid"
	_ "modernc.org/sqlite"

	"plotweave/pkg/batch"
	"plotweave/pkg/narrative"
	"plotweave/pkg/outline"
	"plotweave/pkg/prompt"
	"plotweave/pkg/schema"
)

// SQLite keeps every narrative, partial ones included, with its paragraphs
// and the instructions that produced them.
type SQLite struct {
	conn *sqlx.DB
}

// Record is one stored narrative.
type Record struct {
	ID          string        `db:"id" json:"id"`
	BatchID     string        `db:"batch_id" json:"batch_id"`
	JobID       string        `db:"job_id" json:"job_id"`
	Premise     string        `db:"premise" json:"premise"`
	Mode        schema.Mode   `db:"mode" json:"mode"`
	Outline     string        `db:"outline" json:"outline"`
	Complete    bool          `db:"complete" json:"complete"`
	FailedScene sql.NullInt64 `db:"failed_scene" json:"-"`
	Error       string        `db:"error" json:"error,omitempty"`
	CreatedAt   int64         `db:"created_at" json:"created_at"`
	Paragraphs  []string      `db:"-" json:"paragraphs"`
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &SQLite{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *SQLite) Close() error {
	return db.conn.Close()
}

func (db *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS narratives (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		job_id TEXT NOT NULL,
		premise TEXT NOT NULL,
		mode TEXT NOT NULL,
		outline TEXT NOT NULL,
		complete INTEGER NOT NULL,
		failed_scene INTEGER,
		error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS paragraphs (
		narrative_id TEXT NOT NULL REFERENCES narratives(id),
		scene INTEGER NOT NULL,
		instruction TEXT NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (narrative_id, scene)
	);

	CREATE INDEX IF NOT EXISTS idx_narratives_premise ON narratives(premise, mode);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SavePair stores both narratives of a pair in one transaction.
func (db *SQLite) SavePair(ctx context.Context, p batch.Pair) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	guided := p.Job.Outline.String()
	naive := make(outline.Outline, len(p.Job.Outline))
	for i := range naive {
		naive[i] = prompt.NaiveLabel
	}

	sides := []struct {
		mode    schema.Mode
		outline string
		n       narrative.Narrative
		err     error
	}{
		{schema.Guided, guided, p.Guided, p.GuidedErr},
		{schema.Unguided, naive.String(), p.Unguided, p.UnguidedErr},
	}
	for _, s := range sides {
		rec := Record{
			ID:       ksuid.New().String(),
			BatchID:  p.Job.BatchID,
			JobID:    p.Job.ID,
			Premise:  p.Job.Premise,
			Mode:     s.mode,
			Outline:  s.outline,
			Complete: s.err == nil && s.n.Complete,
		}
		if s.err != nil {
			rec.Error = s.err.Error()
			if scene, ok := FailedScene(s.err); ok {
				rec.FailedScene = sql.NullInt64{Int64: int64(scene), Valid: true}
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO narratives
			(id, batch_id, job_id, premise, mode, outline, complete, failed_scene, error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.BatchID, rec.JobID, rec.Premise, string(rec.Mode), rec.Outline,
			boolInt(rec.Complete), rec.FailedScene, rec.Error, now); err != nil {
			return fmt.Errorf("insert narrative: %w", err)
		}

		instructions := instructionTexts(s.n.Conversation)
		for i, text := range s.n.Paragraphs {
			var instruction string
			if i < len(instructions) {
				instruction = instructions[i]
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO paragraphs (narrative_id, scene, instruction, text) VALUES (?, ?, ?, ?)`,
				rec.ID, i, instruction, text); err != nil {
				return fmt.Errorf("insert paragraph %d: %w", i, err)
			}
		}
	}
	return tx.Commit()
}

// Narratives returns the stored narratives of a premise and mode, oldest
// first, with their paragraphs.
func (db *SQLite) Narratives(ctx context.Context, premise string, mode schema.Mode) ([]Record, error) {
	var recs []Record
	err := db.conn.SelectContext(ctx, &recs, `SELECT id, batch_id, job_id, premise, mode, outline, complete, failed_scene, error, created_at
		FROM narratives WHERE premise = ? AND mode = ? ORDER BY created_at, rowid`, premise, string(mode))
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if err := db.conn.SelectContext(ctx, &recs[i].Paragraphs,
			`SELECT text FROM paragraphs WHERE narrative_id = ? ORDER BY scene`, recs[i].ID); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// Premises lists the distinct premises stored.
func (db *SQLite) Premises(ctx context.Context) ([]string, error) {
	var out []string
	err := db.conn.SelectContext(ctx, &out, `SELECT DISTINCT premise FROM narratives ORDER BY premise`)
	return out, err
}

// FailedScene reports the scene a generation error stopped at.
func FailedScene(err error) (int, bool) {
	var se *narrative.SceneError
	if errors.As(err, &se) {
		return se.Scene, true
	}
	var he *prompt.HintError
	if errors.As(err, &he) {
		return he.Scene, true
	}
	var me *prompt.MissingInstructionError
	if errors.As(err, &me) {
		return me.Scene, true
	}
	return 0, false
}

func instructionTexts(turns []schema.Turn) []string {
	var out []string
	for _, t := range turns {
		if t.Role == schema.RoleUser {
			out = append(out, strings.TrimSpace(t.Content))
		}
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
