package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrNotFound
	ErrInvalid
	ErrBusy
	ErrUpstream
	ErrCorrupted
	ErrInternal
	ErrInvalidFile
	ErrUploadFailed
)
