package errors

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrBusy      = errors.New("ingestion in progress")
	ErrInvalid   = errors.New("invalid input")
	ErrUpstream  = errors.New("upstream failure")
	ErrCorrupted = errors.New("store corrupted")
	ErrInternal  = errors.New("internal")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}
