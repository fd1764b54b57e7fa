package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"chatcore/internal/domain"
)

// SQLSTATE class 23 codes we care about.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// mapErr translates PostgreSQL constraint failures into domain sentinels.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return domain.ErrDuplicate
		case codeForeignKeyViolation:
			return domain.ErrInvalidReference
		}
	}
	return err
}
