package engine

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("position not found")
	ErrAlreadyClosed     = errors.New("position already closed")
	ErrTransferFailed    = errors.New("settlement transfer failed")
	ErrInvalidPrice      = errors.New("price must be > 0")
	ErrInvalidDirection  = errors.New("direction must be long or short")
	ErrOverflow          = errors.New("arithmetic overflow")
	ErrCorruptRecord     = errors.New("corrupt position record")
)
