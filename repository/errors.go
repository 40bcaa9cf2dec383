package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrChannelExists is returned when creating a dynamic channel would violate
// either the channel id primary key or the (owner, guild) uniqueness constraint.
var ErrChannelExists = errors.New("dynamic channel already exists")

// uniqueViolation is the Postgres error code for unique constraint violations
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
