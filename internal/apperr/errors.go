package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrCategoryOccupied = errors.New("template category occupied")
	ErrInvalidBackup    = errors.New("invalid backup file format")
)
