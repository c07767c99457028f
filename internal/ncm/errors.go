package ncm

import "errors"

var (
	ErrFormat       = errors.New("invalid ncm format")
	ErrPadding      = errors.New("invalid padding")
	ErrMetadata     = errors.New("invalid metadata")
	ErrVerification = errors.New("output verification failed")
	ErrIO           = errors.New("io failed")
)
