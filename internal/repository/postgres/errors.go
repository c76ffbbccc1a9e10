package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lalith-99/echogram/internal/apperr"
)

// SQLSTATE codes the stores translate into domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// translate turns constraint violations into apperr values so nothing above
// the store has to know about SQLSTATE codes. Other errors pass through.
func translate(err error, duplicateDetail, missingRefDetail string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return apperr.Wrap(apperr.KindConflict, duplicateDetail, err)
	case codeForeignKeyViolation:
		return apperr.Wrap(apperr.KindIntegrityViolation, missingRefDetail, err)
	}
	return err
}
