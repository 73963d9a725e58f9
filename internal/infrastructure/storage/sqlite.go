package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// SQLiteInspectionRepository is the durable inspection log.
type SQLiteInspectionRepository struct {
	conn *sql.DB
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(path string) (*SQLiteInspectionRepository, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	r := &SQLiteInspectionRepository{conn: conn}
	if err := r.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return r, nil
}

func (r *SQLiteInspectionRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS inspections (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		verdict TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		command TEXT NOT NULL,
		unavailable INTEGER NOT NULL DEFAULT 0,
		centroid_x INTEGER DEFAULT 0,
		centroid_y INTEGER DEFAULT 0,
		distance REAL DEFAULT 0,
		area REAL DEFAULT 0,
		triggered_at INTEGER NOT NULL,
		decided_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_inspections_decided_at ON inspections(decided_at);
	CREATE INDEX IF NOT EXISTS idx_inspections_verdict ON inspections(verdict);

	CREATE TABLE IF NOT EXISTS subscribers (
		chat_id INTEGER PRIMARY KEY,
		level TEXT NOT NULL,
		subscribed_at INTEGER NOT NULL
	);
	`

	_, err := r.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (r *SQLiteInspectionRepository) Close() error {
	return r.conn.Close()
}

// Save inserts one inspection. The frame itself is not stored.
func (r *SQLiteInspectionRepository) Save(ctx context.Context, i entity.Inspection) error {
	_, err := r.conn.ExecContext(ctx, `
		INSERT INTO inspections (id, seq, verdict, confidence, command, unavailable,
			centroid_x, centroid_y, distance, area, triggered_at, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, i.ID, i.Seq, i.Verdict.Class.String(), i.Verdict.Confidence, i.Command.String(), i.Unavailable,
		i.Detection.Centroid.X, i.Detection.Centroid.Y, i.Detection.Distance, i.Detection.Area,
		i.TriggeredAt.UnixNano(), i.DecidedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert inspection: %w", err)
	}
	return nil
}

// Recent returns the latest inspections, newest first.
func (r *SQLiteInspectionRepository) Recent(ctx context.Context, limit int) ([]entity.Inspection, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.conn.QueryContext(ctx, `
		SELECT id, seq, verdict, confidence, command, unavailable,
			centroid_x, centroid_y, distance, area, triggered_at, decided_at
		FROM inspections ORDER BY decided_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query inspections: %w", err)
	}
	defer rows.Close()

	var out []entity.Inspection
	for rows.Next() {
		var (
			i                  entity.Inspection
			verdict, command   string
			triggered, decided int64
		)
		if err := rows.Scan(&i.ID, &i.Seq, &verdict, &i.Verdict.Confidence, &command, &i.Unavailable,
			&i.Detection.Centroid.X, &i.Detection.Centroid.Y, &i.Detection.Distance, &i.Detection.Area,
			&triggered, &decided); err != nil {
			return nil, fmt.Errorf("failed to scan inspection: %w", err)
		}
		if i.Verdict.Class, err = entity.ParseVerdictClass(verdict); err != nil {
			return nil, err
		}
		if i.Command, err = entity.ParseCommand(command); err != nil {
			return nil, err
		}
		i.Detection.Present = i.Detection.Area > 0
		i.TriggeredAt = time.Unix(0, triggered)
		i.DecidedAt = time.Unix(0, decided)
		out = append(out, i)
	}

	return out, rows.Err()
}

// Stats counts inspections per verdict.
func (r *SQLiteInspectionRepository) Stats(ctx context.Context) (entity.InspectionStats, error) {
	var s entity.InspectionStats
	err := r.conn.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(verdict = 'good'), 0),
			COALESCE(SUM(verdict = 'bad'), 0),
			COALESCE(SUM(verdict = 'none'), 0),
			COALESCE(SUM(unavailable), 0)
		FROM inspections
	`).Scan(&s.Total, &s.Good, &s.Bad, &s.None, &s.Unavailable)
	if err != nil {
		return s, fmt.Errorf("failed to count inspections: %w", err)
	}
	return s, nil
}

var _ port.InspectionRepository = (*SQLiteInspectionRepository)(nil)
