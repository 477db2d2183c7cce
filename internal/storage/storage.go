// Package storage defines the persistence interface for collections and their records.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/researchpilot/internal/models"
)

// ErrCollectionNotFound is returned for operations on a collection that does not exist.
var ErrCollectionNotFound = errors.New("collection not found")

// Storage persists named collections of embedded records.
type Storage interface {
	// Collection operations
	EnsureCollection(ctx context.Context, name string, dimension int) (int, error)
	DeleteCollection(ctx context.Context, name string) error

	// Record operations
	UpsertRecords(ctx context.Context, collection string, records []*models.IndexRecord) error
	LoadRecords(ctx context.Context, collection string) ([]*models.IndexRecord, error)
	DeleteRecordsBySource(ctx context.Context, collection, source string) ([]string, error)
	ReplaceSources(ctx context.Context, collection string, sources []string, records []*models.IndexRecord) ([]string, error)

	// Stats
	CountRecords(ctx context.Context, collection string) (int, error)

	Close() error
}
