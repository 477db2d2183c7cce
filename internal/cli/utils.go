// Package cli renders search results, analyses, and collection state for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/researchpilot/internal/models"
	"github.com/hyperjump/researchpilot/pkg/utils"
)

// OutputFormat selects how command output is written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	separator      = "─────────────────────────────────────────────────────────"
	previewLen     = 200
	defaultUnknown = "unknown"
)

// ParseFormat returns the output format named by s; anything other than "json" is text.
func ParseFormat(s string) OutputFormat {
	if strings.EqualFold(strings.TrimSpace(s), string(OutputJSON)) {
		return OutputJSON
	}
	return OutputText
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results for %q\n\n", response.ResultsCount, response.Query)
	for _, r := range response.Results {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "Rank: %d | Similarity: %.4f | Distance: %.4f\n", r.Rank, r.Similarity, r.Distance)
		fmt.Fprintf(w, "Source: %s (chunk %v)\n",
			metaString(r.Metadata, models.MetaSource), metaValue(r.Metadata, models.MetaChunkIndex))
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.Document, previewLen))
	}
	return nil
}

// WriteAnalysis writes an assistant answer to w in the given format.
func WriteAnalysis(w io.Writer, analysis *models.Analysis, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, analysis)
	}
	model := "none (LLM not configured)"
	if analysis.Model != nil {
		model = *analysis.Model
	}
	fmt.Fprintf(w, "\nQuery: %s\n", analysis.Query)
	fmt.Fprintf(w, "Model: %s | Sources used: %d (top_k %d)\n", model, analysis.SourceChunksUsed, analysis.TopK)
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, analysis.Analysis)
	return nil
}

// WriteStats writes collection statistics to w in the given format.
func WriteStats(w io.Writer, stats models.CollectionStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Collection: %s\n", stats.CollectionName)
	fmt.Fprintf(w, "Documents:  %d\n", stats.DocumentCount)
	fmt.Fprintf(w, "Dimension:  %d\n", stats.EmbeddingDimension)
	fmt.Fprintf(w, "Database:   %s\n", stats.DBPath)
	return nil
}

// WriteIngestResult writes the outcome of an ingestion to w in the given format.
func WriteIngestResult(w io.Writer, result *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "[%s] %s\n", result.Status, result.Message)
	if len(result.FilesFailed) > 0 {
		fmt.Fprintf(w, "Skipped %d file(s): %s\n", len(result.FilesFailed), strings.Join(result.FilesFailed, ", "))
	}
	return nil
}

func metaValue(m map[string]interface{}, key string) interface{} {
	if v, ok := m[key]; ok && v != nil {
		return v
	}
	return defaultUnknown
}

func metaString(m map[string]interface{}, key string) string {
	return fmt.Sprint(metaValue(m, key))
}
