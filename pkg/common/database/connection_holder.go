package database

import (
	"database/sql"
)

// ConnectionHolder owns the journal database handle, which is nil when the
// journal is kept in memory.
type ConnectionHolder interface {
	GetJournalDbConnection() *sql.DB
	Close() error
}

type connectionHolderImpl struct {
	JournalDbConnection *sql.DB
}

func (c *connectionHolderImpl) GetJournalDbConnection() *sql.DB {
	return c.JournalDbConnection
}

func (c *connectionHolderImpl) Close() error {
	if c.JournalDbConnection == nil {
		return nil
	}
	return c.JournalDbConnection.Close()
}

func NewConnectionHolder(journalDbConnection *sql.DB) ConnectionHolder {
	return &connectionHolderImpl{
		JournalDbConnection: journalDbConnection,
	}
}
