package domain

import "errors"

var (
	ErrInstanceNotFound   = errors.New("export instance not found")
	ErrExportTypeNotFound = errors.New("export type not found")
	ErrInvalidFilter      = errors.New("invalid export filter")
	ErrInvalidOptions     = errors.New("invalid filter options")
	ErrInvalidStatus      = errors.New("invalid export status")
	ErrNoLastExport       = errors.New("this export type has never been run successfully; there is no last-updated date to use")
	ErrAlreadyRunning     = errors.New("an export of this type is already in progress")
)
