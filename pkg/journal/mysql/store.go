package mysqlJournal

import (
	"context"
	"database/sql"
	"time"

	"github.com/devlibx/gox-base/v2"
	"github.com/devlibx/gox-base/v2/errors"
	"github.com/devlibx/gox-dozeprobe/pkg/journal"
	dozeprobeMysql "github.com/devlibx/gox-dozeprobe/pkg/journal/mysql/database"
	_ "github.com/go-sql-driver/mysql"
)

type store struct {
	gox.CrossFunction
	db      *sql.DB
	Queries *dozeprobeMysql.Queries
}

// NewMySQLStore opens the database described by config and creates the
// session table if it is missing.
func NewMySQLStore(ctx context.Context, cf gox.CrossFunction, config *MySqlConfig) (journal.Store, *sql.DB, error) {
	db, err := OpenDB(config)
	if err != nil {
		return nil, nil, err
	}

	s, err := NewMySQLStoreWithSqlDb(ctx, cf, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return s, db, nil
}

// OpenDB builds the connection pool. No connection is made until first use.
func OpenDB(config *MySqlConfig) (*sql.DB, error) {
	config.SetupDefault()

	db, err := sql.Open("mysql", config.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "error in connecting to database - failed to call sql.Open: database=[%s]", config.Database)
	}

	db.SetMaxOpenConns(config.MaxOpenConnection)
	db.SetMaxIdleConns(config.MaxIdleConnection)
	db.SetConnMaxLifetime(time.Duration(config.ConnMaxLifetimeInSec) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(config.ConnMaxIdleTimeInSec) * time.Second)
	return db, nil
}

func NewMySQLStoreWithSqlDb(ctx context.Context, cf gox.CrossFunction, db *sql.DB) (journal.Store, error) {
	q := dozeprobeMysql.New(db)
	if err := q.Migrate(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to create session table")
	}
	return &store{CrossFunction: cf, db: db, Queries: q}, nil
}

func (s *store) StartSession(ctx context.Context, id string, startedAt time.Time) error {
	err := s.Queries.UpsertSession(ctx, dozeprobeMysql.UpsertSessionParams{
		ID:        id,
		StartedAt: startedAt,
		Outcome:   journal.OutcomeRunning,
	})
	if err != nil {
		return errors.Wrap(err, "failed to start session: id=%s", id)
	}
	return nil
}

func (s *store) RecordResult(ctx context.Context, id string, outcome journal.ProbeOutcome) error {
	at := outcome.At
	if at.IsZero() {
		at = s.Now()
	}
	result, err := s.Queries.UpdateResult(ctx, dozeprobeMysql.UpdateResultParams{
		ID:               id,
		Outcome:          outcome.Outcome,
		Kind:             outcome.Kind,
		Reason:           outcome.Reason,
		BytesTransferred: outcome.BytesTransferred,
		ResultAt:         at,
	})
	if err != nil {
		return errors.Wrap(err, "failed to record result: id=%s", id)
	}
	return requireRow(result)
}

func (s *store) EndSession(ctx context.Context, id string, endedAt time.Time) error {
	result, err := s.Queries.EndSession(ctx, id, endedAt)
	if err != nil {
		return errors.Wrap(err, "failed to end session: id=%s", id)
	}
	return requireRow(result)
}

func (s *store) List(ctx context.Context, limit int) ([]journal.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Queries.ListSessions(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	toRet := make([]journal.Session, 0, len(rows))
	for _, r := range rows {
		toRet = append(toRet, journal.Session{
			ID:               r.ID,
			StartedAt:        r.StartedAt,
			EndedAt:          r.EndedAt.Time,
			Outcome:          r.Outcome,
			Kind:             r.Kind,
			Reason:           r.Reason.String,
			BytesTransferred: r.BytesTransferred,
			ResultAt:         r.ResultAt.Time,
		})
	}
	return toRet, nil
}

// An UPDATE that matched nothing means the id was never started. MySQL reports
// matched-but-unchanged rows as 0 too, which only happens on an exact replay.
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return journal.ErrSessionNotFound
	}
	return nil
}
