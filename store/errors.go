package store

import (
	"errors"

	"github.com/NegusBas/In/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// translateError maps driver-specific foreign key violations on message
// inserts to models.ErrConversationNotFound. Anything else passes through.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if isForeignKeyViolation(err) {
		return models.ErrConversationNotFound
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgerrcode.ForeignKeyViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.ForeignKeyViolation
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
