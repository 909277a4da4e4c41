package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Repository is the submission journal.
type Repository interface {
	EnsureSchema(ctx context.Context) error

	UpsertSubmission(ctx context.Context, s Submission) error
	ListSubmissions(ctx context.Context, account string, limit int) ([]Submission, error)
}

// KV is a small durable string slot store.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
}
