package consts

import "errors"

var (
	ErrScriptTooLarge   = errors.New("script too large")
	ErrEmptyScript      = errors.New("script is empty")
	ErrInvalidExtension = errors.New("invalid sieve extension")
	ErrInternalError    = errors.New("internal error")
)
