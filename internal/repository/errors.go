package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"habitchallenge/internal/model"
)

const pqUniqueViolation = "23505"

// storageError tags a driver failure so handlers can answer 503.
func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrStorageUnavailable, err)
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
