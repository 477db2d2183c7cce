// Package collection implements a named, persistent set of embedded records with
// cosine nearest-neighbour search. Records live in SQLite and are mirrored in an
// in-memory vector index that is rebuilt on open.
package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/researchpilot/internal/metrics"
	"github.com/hyperjump/researchpilot/internal/models"
	"github.com/hyperjump/researchpilot/internal/storage"
	"github.com/hyperjump/researchpilot/internal/vector"
)

// Collection is safe for concurrent use. Query, Count and Stats share a read lock;
// Add, ReplaceSource(s), DeleteSource and Clear are exclusive.
type Collection struct {
	name      string
	dbPath    string
	dimension int
	store     storage.Storage
	index     *vector.MemoryIndex
	entries   map[string]entry
	logger    *zap.Logger
	mu        sync.RWMutex
}

type entry struct {
	text     string
	metadata map[string]interface{}
}

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Collection) {
		c.logger = logger
	}
}

// WithDBPath sets the directory reported in Stats.
func WithDBPath(path string) Option {
	return func(c *Collection) {
		c.dbPath = path
	}
}

// Open loads (or creates) the named collection from store. A collection created
// with a different dimension is rejected; clear it or point at a fresh path.
func Open(ctx context.Context, store storage.Storage, name string, dimension int, opts ...Option) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required: %w", models.ErrValidation)
	}
	idx, err := vector.NewMemoryIndex(dimension)
	if err != nil {
		return nil, err
	}
	c := &Collection{
		name:      name,
		dimension: dimension,
		store:     store,
		index:     idx,
		entries:   make(map[string]entry),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	stored, err := store.EnsureCollection(ctx, name, dimension)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w: %w", name, models.ErrIndex, err)
	}
	if stored != dimension {
		return nil, fmt.Errorf("collection %s stores %d-dimensional vectors but the embedder produces %d: %w",
			name, stored, dimension, models.ErrDimensionMismatch)
	}

	records, err := store.LoadRecords(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load collection %s: %w: %w", name, models.ErrIndex, err)
	}
	ids := make([]string, len(records))
	vecs := make([][]float32, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		vecs[i] = rec.Embedding
		c.entries[rec.ID] = entry{text: rec.Text, metadata: rec.Metadata}
	}
	if err := c.index.Upsert(ctx, ids, vecs); err != nil {
		return nil, fmt.Errorf("load collection %s: %w: %w", name, models.ErrIndex, err)
	}
	stored, err = store.CountRecords(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("count collection %s: %w: %w", name, models.ErrIndex, err)
	}
	if stored != c.index.Size() {
		return nil, fmt.Errorf("collection %s has %d stored records but %d were loaded: %w",
			name, stored, c.index.Size(), models.ErrIndex)
	}
	c.logger.Info("collection opened",
		zap.String("collection", name),
		zap.Int("records", len(records)),
		zap.Int("dimension", dimension))
	c.reportSize()
	return c, nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Dimension returns the fixed embedding dimension.
func (c *Collection) Dimension() int {
	return c.dimension
}

// Add stores records. Two records with the same id in one call fail with
// ErrDuplicateID; an id already present from an earlier call is overwritten.
func (c *Collection) Add(ctx context.Context, records []*models.IndexRecord) error {
	if err := c.validate(records); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(ctx, records)
}

// ReplaceSource swaps every record ingested from source for records in one
// storage transaction. On failure the previous records stay in place.
func (c *Collection) ReplaceSource(ctx context.Context, source string, records []*models.IndexRecord) (int, error) {
	return c.ReplaceSources(ctx, []string{source}, records)
}

// ReplaceSources is ReplaceSource for several files at once. Either every source
// is replaced or the collection is left untouched. It returns how many previous
// records were dropped.
func (c *Collection) ReplaceSources(ctx context.Context, sources []string, records []*models.IndexRecord) (int, error) {
	if err := c.validate(records); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	removed, err := c.store.ReplaceSources(ctx, c.name, sources, records)
	if err != nil {
		return 0, fmt.Errorf("replace %d sources in %s: %w: %w", len(sources), c.name, models.ErrIndex, err)
	}
	if err := c.index.Remove(ctx, removed); err != nil {
		return 0, fmt.Errorf("replace in %s: %w: %w", c.name, models.ErrIndex, err)
	}
	for _, id := range removed {
		delete(c.entries, id)
	}
	if err := c.mirror(ctx, records); err != nil {
		return 0, err
	}
	return len(removed), nil
}

// DeleteSource removes every record ingested from source and returns how many were removed.
func (c *Collection) DeleteSource(ctx context.Context, source string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteSourceLocked(ctx, source)
}

func (c *Collection) validate(records []*models.IndexRecord) error {
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("record id is required: %w", models.ErrValidation)
		}
		if _, dup := seen[rec.ID]; dup {
			return fmt.Errorf("%w: %s", models.ErrDuplicateID, rec.ID)
		}
		seen[rec.ID] = struct{}{}
		if len(rec.Embedding) != c.dimension {
			return fmt.Errorf("%w: record %s has %d, collection expects %d",
				models.ErrDimensionMismatch, rec.ID, len(rec.Embedding), c.dimension)
		}
	}
	return nil
}

func (c *Collection) addLocked(ctx context.Context, records []*models.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := c.store.UpsertRecords(ctx, c.name, records); err != nil {
		return fmt.Errorf("add to %s: %w: %w", c.name, models.ErrIndex, err)
	}
	return c.mirror(ctx, records)
}

// mirror copies records that are already persisted into the in-memory index.
func (c *Collection) mirror(ctx context.Context, records []*models.IndexRecord) error {
	ids := make([]string, len(records))
	vecs := make([][]float32, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		vecs[i] = rec.Embedding
		c.entries[rec.ID] = entry{text: rec.Text, metadata: copyMetadata(rec.Metadata)}
	}
	if err := c.index.Upsert(ctx, ids, vecs); err != nil {
		return fmt.Errorf("add to %s: %w: %w", c.name, models.ErrIndex, err)
	}
	c.reportSize()
	return nil
}

func (c *Collection) deleteSourceLocked(ctx context.Context, source string) (int, error) {
	ids, err := c.store.DeleteRecordsBySource(ctx, c.name, source)
	if err != nil {
		return 0, fmt.Errorf("delete %s from %s: %w: %w", source, c.name, models.ErrIndex, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := c.index.Remove(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete %s from %s: %w: %w", source, c.name, models.ErrIndex, err)
	}
	for _, id := range ids {
		delete(c.entries, id)
	}
	c.reportSize()
	return len(ids), nil
}

// Query returns the min(k, Count()) records closest to embedding, nearest first.
// An empty collection yields an empty result.
func (c *Collection) Query(ctx context.Context, embedding []float32, k int) ([]models.Neighbor, error) {
	if len(embedding) != c.dimension {
		return nil, fmt.Errorf("%w: query has %d, collection expects %d",
			models.ErrDimensionMismatch, len(embedding), c.dimension)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	hits, err := c.index.Search(ctx, embedding, k)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("query %s: %w: %w", c.name, models.ErrIndex, err)
	}
	out := make([]models.Neighbor, 0, len(hits))
	for _, hit := range hits {
		e := c.entries[hit.ID]
		out = append(out, models.Neighbor{
			ID:       hit.ID,
			Text:     e.text,
			Metadata: copyMetadata(e.metadata),
			Distance: hit.Distance,
		})
	}
	return out, nil
}

// Count returns the number of records.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Size()
}

// Clear irreversibly deletes every record. The collection is recreated empty with
// the same name and dimension, so Add works immediately afterwards.
func (c *Collection) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.DeleteCollection(ctx, c.name); err != nil && !errors.Is(err, storage.ErrCollectionNotFound) {
		return fmt.Errorf("clear %s: %w: %w", c.name, models.ErrIndex, err)
	}
	if _, err := c.store.EnsureCollection(ctx, c.name, c.dimension); err != nil {
		return fmt.Errorf("recreate %s: %w: %w", c.name, models.ErrIndex, err)
	}
	c.index.Reset()
	c.entries = make(map[string]entry)
	c.logger.Info("collection cleared", zap.String("collection", c.name))
	c.reportSize()
	return nil
}

// Stats returns a snapshot of the collection state.
func (c *Collection) Stats() models.CollectionStats {
	return models.CollectionStats{
		CollectionName:     c.name,
		DocumentCount:      c.Count(),
		EmbeddingDimension: c.dimension,
		DBPath:             c.dbPath,
	}
}

// Close releases the underlying store.
func (c *Collection) Close() error {
	return c.store.Close()
}

func (c *Collection) reportSize() {
	metrics.CollectionRecords.WithLabelValues(c.name).Set(float64(c.index.Size()))
}

func copyMetadata(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
