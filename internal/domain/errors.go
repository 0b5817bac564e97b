package domain

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrItemNotFound      = errors.New("recipe not found")
	ErrInvalidPolarity   = errors.New("invalid feedback polarity")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrEmptyCorpus       = errors.New("corpus is empty")
	ErrDuplicateItem     = errors.New("duplicate recipe id in corpus")
	ErrModelNotFitted    = errors.New("vectorizer model is not fitted")
)
