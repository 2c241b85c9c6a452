package models

import "errors"

var (
	ErrInvalidSubject  = errors.New("invalid subject")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidFile     = errors.New("invalid file")
	ErrFileNotFound    = errors.New("file not found")
	ErrNotIngested     = errors.New("subject not ingested")
	ErrNothingToIndex  = errors.New("no chunks produced, index left untouched")
)
