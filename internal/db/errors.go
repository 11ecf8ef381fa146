package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"enterprise-api/backend/internal/apperr"
)

// Postgres SQLSTATE codes translated by TranslateError.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
	codeCheckViolation      = "23514"
)

// TranslateError maps constraint violations to the application error taxonomy.
// Errors that are not constraint violations are returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return apperr.Wrap(apperr.KindConflict, uniqueMessage(pgErr.ConstraintName), err)
	case codeForeignKeyViolation:
		return apperr.Wrap(apperr.KindBadRequest, "Referenced record does not exist", err)
	case codeNotNullViolation, codeCheckViolation:
		return apperr.Wrap(apperr.KindBadRequest, "Invalid value", err)
	}
	return err
}

func uniqueMessage(constraint string) string {
	switch constraint {
	case "users_email_key", "users_email_active_idx":
		return "User with this email already exists"
	case "users_username_key", "users_username_active_idx":
		return "Username is already taken"
	case "roles_name_key":
		return "Role with this name already exists"
	case "role_permissions_pkey":
		return "Permission is already assigned to this role"
	}
	return "Resource already exists"
}
