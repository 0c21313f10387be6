package store

import (
	"database/sql"
	"image"
	"time"

	"github.com/ayusman/avoid/internal/avoidance"
)

// CommandEntry is one logged command change.
type CommandEntry struct {
	ID         int64             `json:"id"`
	SessionID  string            `json:"session_id"`
	Seq        uint64            `json:"seq"`
	Command    avoidance.Command `json:"command"`
	Threat     *image.Point      `json:"threat,omitempty"`
	Dangerous  int               `json:"dangerous"`
	Objects    int               `json:"objects"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// CommandRepository reads and writes the command log.
type CommandRepository struct {
	db *sql.DB
}

// Commands returns the command log repository for this store.
func (s *Store) Commands() *CommandRepository {
	return &CommandRepository{db: s.db}
}

// Record appends e to its session's log and sets e.ID.
func (r *CommandRepository) Record(e *CommandEntry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}

	var tx, ty sql.NullInt64
	if e.Threat != nil {
		tx = sql.NullInt64{Int64: int64(e.Threat.X), Valid: true}
		ty = sql.NullInt64{Int64: int64(e.Threat.Y), Valid: true}
	}

	result, err := r.db.Exec(
		`INSERT INTO command_log (session_id, seq, command, threat_x, threat_y, dangerous, objects, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, int64(e.Seq), e.Command.Key(), tx, ty, e.Dangerous, e.Objects, e.RecordedAt,
	)
	if err != nil {
		return err
	}

	e.ID, err = result.LastInsertId()
	return err
}

// ListBySession returns a session's log in sequence order.
func (r *CommandRepository) ListBySession(sessionID string) ([]*CommandEntry, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, seq, command, threat_x, threat_y, dangerous, objects, recorded_at
		 FROM command_log WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*CommandEntry{}
	for rows.Next() {
		e := &CommandEntry{}
		var seq int64
		var cmd string
		var tx, ty sql.NullInt64

		if err := rows.Scan(&e.ID, &e.SessionID, &seq, &cmd, &tx, &ty, &e.Dangerous, &e.Objects, &e.RecordedAt); err != nil {
			return nil, err
		}

		e.Seq = uint64(seq)
		if e.Command, err = avoidance.ParseCommand(cmd); err != nil {
			return nil, err
		}
		if tx.Valid && ty.Valid {
			p := image.Pt(int(tx.Int64), int(ty.Int64))
			e.Threat = &p
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Count returns the number of entries logged for a session.
func (r *CommandRepository) Count(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM command_log WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
