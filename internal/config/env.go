package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LookupFunc matches os.LookupEnv so tests can supply a fixed environment.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads variables from a .env file into the process environment.
// A missing file is ignored and existing variables are never overwritten.
func LoadDotEnv(path string) {
	_ = godotenv.Load(path)
}

// ApplyEnv overrides cfg with values from the environment.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var err error
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" || err != nil {
			return
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(v))
		if convErr != nil {
			err = fmt.Errorf("invalid %s: %w", key, convErr)
			return
		}
		*dst = n
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.EqualFold(strings.TrimSpace(v), "true") || v == "1"
		}
	}

	flag("DEBUG", &cfg.Debug)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("HOST", &cfg.Server.Host)
	num("PORT", &cfg.Server.Port)
	str("VECTOR_DB_PATH", &cfg.Storage.DBPath)
	str("COLLECTION_NAME", &cfg.Storage.CollectionName)
	str("DATA_DIR", &cfg.Storage.DataDir)
	str("EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	str("EMBEDDING_MODEL", &cfg.Embedding.Model)
	str("EMBEDDING_MODEL_PATH", &cfg.Embedding.ModelPath)
	num("EMBEDDING_DIMENSION", &cfg.Embedding.Dimensions)
	str("EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL)
	str("EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	num("MAX_CHUNK_SIZE", &cfg.Chunking.ChunkSize)
	num("CHUNK_OVERLAP", &cfg.Chunking.ChunkOverlap)
	str("GROQ_API_KEY", &cfg.LLM.APIKey)
	str("GROQ_MODEL", &cfg.LLM.Model)
	str("GROQ_BASE_URL", &cfg.LLM.BaseURL)
	flag("WATCH_ENABLED", &cfg.Watch.Enabled)
	if err != nil {
		return err
	}

	if v, ok := lookup("MAX_UPLOAD_BYTES"); ok && v != "" {
		n, convErr := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if convErr != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", convErr)
		}
		cfg.Server.MaxUploadBytes = n
	}
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		var origins []string
		if jsonErr := json.Unmarshal([]byte(v), &origins); jsonErr != nil {
			// Accept a plain comma-separated list too.
			origins = nil
			for _, o := range strings.Split(v, ",") {
				if o = strings.TrimSpace(o); o != "" {
					origins = append(origins, o)
				}
			}
		}
		cfg.Server.CORSOrigins = origins
	}
	return nil
}

// MaskKey returns the first 8 characters of a credential for logging.
func MaskKey(key string) string {
	if len(key) > 8 {
		return key[:8] + "..."
	}
	return "***"
}
