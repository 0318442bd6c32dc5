package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrDuplicateKey is returned when an insert hits a unique constraint.
	ErrDuplicateKey = errors.New("repository: duplicate key")
	// ErrIllegalTransition is returned for a status change the order
	// lifecycle does not allow.
	ErrIllegalTransition = errors.New("repository: illegal order status transition")
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = gorm.ErrRecordNotFound
)

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	msg := err.Error()
	if strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed") {
		return ErrDuplicateKey
	}
	return err
}
