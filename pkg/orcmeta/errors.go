package orcmeta

import "errors"

// Every planning failure wraps exactly one of these; match with errors.Is.
var (
	ErrFormat          = errors.New("invalid file metadata")
	ErrSchemaMismatch  = errors.New("schema mismatch across sources")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidStripe   = errors.New("invalid stripe index")
	ErrUnknownColumn   = errors.New("unknown column name")
	ErrCorruptMetadata = errors.New("corrupt metadata")
)
