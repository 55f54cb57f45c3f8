// Package postgres implements the repositories on gorm over PostgreSQL.
package postgres

import (
	"errors"

	"gorm.io/gorm"
)

// isDuplicate relies on gorm.Config.TranslateError being enabled.
func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func isForeignKey(err error) bool {
	return errors.Is(err, gorm.ErrForeignKeyViolated)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
