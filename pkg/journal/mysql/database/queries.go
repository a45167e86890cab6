package dozeprobeMysql

import (
	"context"
	"database/sql"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const CreateSessionTable = `
CREATE TABLE IF NOT EXISTS dozeprobe_session (
    id                VARCHAR(64)  NOT NULL,
    started_at        DATETIME(3)  NOT NULL,
    ended_at          DATETIME(3)  NULL,
    outcome           VARCHAR(32)  NOT NULL,
    kind              VARCHAR(32)  NOT NULL DEFAULT '',
    reason            TEXT         NULL,
    bytes_transferred BIGINT       NOT NULL DEFAULT 0,
    result_at         DATETIME(3)  NULL,
    status            TINYINT      NOT NULL DEFAULT 1,
    PRIMARY KEY (id),
    KEY idx_started_at (started_at)
)`

func (q *Queries) Migrate(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, CreateSessionTable)
	return err
}

const upsertSession = `
INSERT INTO dozeprobe_session (id, started_at, outcome, status)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE started_at = VALUES(started_at), outcome = VALUES(outcome), status = VALUES(status)`

type UpsertSessionParams struct {
	ID        string
	StartedAt time.Time
	Outcome   string
}

func (q *Queries) UpsertSession(ctx context.Context, arg UpsertSessionParams) error {
	_, err := q.db.ExecContext(ctx, upsertSession, arg.ID, arg.StartedAt, arg.Outcome, SessionStatusActive)
	return err
}

const updateResult = `
UPDATE dozeprobe_session
SET outcome = ?, kind = ?, reason = ?, bytes_transferred = ?, result_at = ?
WHERE id = ?`

type UpdateResultParams struct {
	ID               string
	Outcome          string
	Kind             string
	Reason           string
	BytesTransferred int64
	ResultAt         time.Time
}

func (q *Queries) UpdateResult(ctx context.Context, arg UpdateResultParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, updateResult, arg.Outcome, arg.Kind, arg.Reason, arg.BytesTransferred, arg.ResultAt, arg.ID)
}

const endSession = `
UPDATE dozeprobe_session SET ended_at = ?, status = ? WHERE id = ?`

func (q *Queries) EndSession(ctx context.Context, id string, endedAt time.Time) (sql.Result, error) {
	return q.db.ExecContext(ctx, endSession, endedAt, SessionStatusEnded, id)
}

const listSessions = `
SELECT id, started_at, ended_at, outcome, kind, reason, bytes_transferred, result_at
FROM dozeprobe_session
WHERE status != ?
ORDER BY started_at DESC
LIMIT ?`

type SessionRow struct {
	ID               string
	StartedAt        time.Time
	EndedAt          sql.NullTime
	Outcome          string
	Kind             string
	Reason           sql.NullString
	BytesTransferred int64
	ResultAt         sql.NullTime
}

func (q *Queries) ListSessions(ctx context.Context, limit int) ([]SessionRow, error) {
	rows, err := q.db.QueryContext(ctx, listSessions, SessionStatusDeletable, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SessionRow
	for rows.Next() {
		var i SessionRow
		if err := rows.Scan(&i.ID, &i.StartedAt, &i.EndedAt, &i.Outcome, &i.Kind, &i.Reason, &i.BytesTransferred, &i.ResultAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
