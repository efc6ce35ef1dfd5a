package repositories

import "errors"

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrProjectExists   = errors.New("project already exists")
	ErrLockTimeout     = errors.New("project lock timeout")
	ErrStorageIO       = errors.New("storage i/o error")
	ErrCorruptDocument = errors.New("corrupt project document")
)
