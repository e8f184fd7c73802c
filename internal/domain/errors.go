package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUnknownModel        = errors.New("unknown model")
	ErrEmptyResult         = errors.New("no images generated")
)
