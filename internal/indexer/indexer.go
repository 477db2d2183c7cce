package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/researchpilot/internal/embedding"
	"github.com/hyperjump/researchpilot/internal/extract"
	"github.com/hyperjump/researchpilot/internal/fileid"
	"github.com/hyperjump/researchpilot/internal/metrics"
	"github.com/hyperjump/researchpilot/internal/models"
)

// Collection is the write side of a collection used by ingestion.
type Collection interface {
	ReplaceSources(ctx context.Context, sources []string, records []*models.IndexRecord) (int, error)
	DeleteSource(ctx context.Context, source string) (int, error)
}

// Indexer extracts, chunks, embeds and stores documents. Ingestion calls are
// serialized so the collection sees a single writer.
type Indexer struct {
	collection Collection
	embedder   embedding.Embedder
	chunker    *Chunker
	extractor  *extract.Extractor
	dataDir    string
	extensions []string
	logger     *zap.Logger
	mu         sync.Mutex
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for ingestion events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithExtensions sets the accepted file extensions (default ".pdf").
func WithExtensions(exts []string) IndexerOption {
	return func(idx *Indexer) {
		if len(exts) > 0 {
			idx.extensions = exts
		}
	}
}

// NewIndexer creates an indexer that ingests files from dataDir into collection.
func NewIndexer(
	collection Collection,
	embedder embedding.Embedder,
	chunker *Chunker,
	extractor *extract.Extractor,
	dataDir string,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		collection: collection,
		embedder:   embedder,
		chunker:    chunker,
		extractor:  extractor,
		dataDir:    dataDir,
		extensions: []string{".pdf"},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// DataDir returns the directory scanned by IngestDirectory and written by SaveUpload.
func (idx *Indexer) DataDir() string {
	return idx.dataDir
}

// Accepts reports whether path has an accepted extension.
func (idx *Indexer) Accepts(path string) bool {
	return extensionAllowed(filepath.Ext(path), idx.extensions)
}

// document is one extracted and chunked file awaiting embedding.
type document struct {
	path   string
	chunks []models.Chunk
}

// IndexFile ingests a single file, replacing any records previously ingested from it.
// It returns the number of chunks stored.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	doc, err := idx.prepare(path)
	if err != nil {
		metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
		return 0, err
	}
	n, err := idx.store(ctx, []*document{doc})
	if err != nil {
		metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
		return 0, err
	}
	metrics.IngestFilesTotal.WithLabelValues("success").Inc()
	idx.logger.Info("file ingested", zap.String("path", doc.path), zap.Int("chunks", n))
	return n, nil
}

// IngestDirectory ingests every accepted file directly inside the data directory.
// Files that cannot be extracted are logged and skipped. An embedding or index
// failure aborts the whole call and leaves the collection unchanged.
func (idx *Indexer) IngestDirectory(ctx context.Context) (*models.IngestResult, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entries, err := os.ReadDir(idx.dataDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	var (
		docs   []*document
		failed []string
	)
	for _, e := range entries {
		if e.IsDir() || !idx.Accepts(e.Name()) {
			continue
		}
		path := filepath.Join(idx.dataDir, e.Name())
		doc, err := idx.prepare(path)
		if err != nil {
			idx.logger.Error("failed to process file", zap.String("path", path), zap.Error(err))
			metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
			failed = append(failed, e.Name())
			continue
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		idx.logger.Warn("no documents found to ingest", zap.String("data_dir", idx.dataDir))
		return &models.IngestResult{
			Status:            models.IngestStatusWarning,
			Message:           "No PDF documents found in data directory. Please add PDFs to the data folder.",
			DocumentsIngested: 0,
			FilesFailed:       failed,
		}, nil
	}

	n, err := idx.store(ctx, docs)
	if err != nil {
		return nil, err
	}
	metrics.IngestFilesTotal.WithLabelValues("success").Add(float64(len(docs)))
	idx.logger.Info("directory ingested",
		zap.String("data_dir", idx.dataDir),
		zap.Int("files", len(docs)),
		zap.Int("chunks", n),
		zap.Int("failed", len(failed)))
	return &models.IngestResult{
		Status:            models.IngestStatusSuccess,
		Message:           fmt.Sprintf("Ingested %d document chunks", n),
		DocumentsIngested: n,
		FilesProcessed:    len(docs),
		FilesFailed:       failed,
	}, nil
}

// SaveUpload writes r into the data directory under name (renamed to name_N.ext on
// collision), ingests it, and removes it again if ingestion fails.
func (idx *Indexer) SaveUpload(ctx context.Context, name string, r io.Reader) (*models.IngestResult, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == ".." || base == string(filepath.Separator) || base == "" {
		return nil, fmt.Errorf("invalid file name %q: %w", name, models.ErrValidation)
	}
	if !idx.Accepts(base) {
		return nil, fmt.Errorf("only %s files are supported: %w", strings.Join(idx.extensions, ", "), models.ErrUnsupportedFile)
	}
	if err := os.MkdirAll(idx.dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	f, path, err := createUnique(idx.dataDir, base)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write upload: %w", err)
	}
	idx.logger.Info("saved uploaded file", zap.String("path", path))

	n, err := idx.IndexFile(ctx, path)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return &models.IngestResult{
		Status:            models.IngestStatusSuccess,
		Message:           "File uploaded and ingested successfully",
		Filename:          filepath.Base(path),
		DocumentsIngested: n,
	}, nil
}

// RemoveFile drops every record ingested from path.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n, err := idx.collection.DeleteSource(ctx, absPath)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		idx.logger.Info("file removed from collection", zap.String("path", absPath), zap.Int("chunks", n))
	}
	return n, nil
}

// prepare extracts and chunks one file.
func (idx *Indexer) prepare(path string) (*document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if !extensionAllowed(ext, idx.extensions) {
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedFile, ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	text, err := idx.extractor.Extract(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(absPath), err)
	}
	chunks := idx.chunker.Chunk(text, models.ChunkMetadata{
		Source:       filepath.Base(absPath),
		FilePath:     absPath,
		DocumentType: extract.DocumentType(ext),
	})
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(absPath), models.ErrNoText)
	}
	idx.logger.Debug("file chunked", zap.String("path", absPath), zap.Int("chunks", len(chunks)))
	return &document{path: absPath, chunks: chunks}, nil
}

// store embeds every chunk of docs in one batch and swaps each file's records in
// a single collection write, so a failure leaves every file as it was.
func (idx *Indexer) store(ctx context.Context, docs []*document) (int, error) {
	var (
		texts   []string
		sources []string
	)
	for _, d := range docs {
		sources = append(sources, d.path)
		for _, ch := range d.chunks {
			texts = append(texts, ch.Text)
		}
	}
	vecs, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(texts) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks: %w", len(vecs), len(texts), models.ErrEmbedding)
	}

	records := make([]*models.IndexRecord, 0, len(texts))
	for _, d := range docs {
		for _, ch := range d.chunks {
			records = append(records, &models.IndexRecord{
				ID:        fileid.RecordID(d.path, ch.Metadata.ChunkIndex),
				Embedding: vecs[len(records)],
				Text:      ch.Text,
				Metadata:  ch.Metadata.Map(),
			})
		}
	}
	if _, err := idx.collection.ReplaceSources(ctx, sources, records); err != nil {
		return 0, err
	}
	metrics.IngestChunksTotal.Add(float64(len(records)))
	return len(records), nil
}

// createUnique creates dir/name exclusively, falling back to stem_1.ext, stem_2.ext, ...
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; ; i++ {
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create upload file: %w", err)
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
