package ragdex

import (
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "sqlite" or "redis"
	path     string // sqlite file
	addrs    []string
	password string

	embedder   Embedder
	dimensions int

	lexicalPath  string // empty = in-memory
	minChunkSize int

	logger *zap.Logger
}

// WithSQLite stores the index in a local SQLite file. Good for single-node
// and embedded use.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "sqlite"
		c.path = path
	})
}

// WithRedis stores the index in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithEmbedder sets the embedding provider and the vector width it produces.
// Required for both ingestion and querying.
func WithEmbedder(e Embedder, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.dimensions = dimensions
	})
}

// WithLexicalPath persists the term-expansion index on disk. By default it
// lives in memory and is rebuilt from the vector index on demand.
func WithLexicalPath(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.lexicalPath = path
	})
}

// WithMinChunkSize overrides the noise floor below which chunks are dropped.
func WithMinChunkSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.minChunkSize = n
	})
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = logger
	})
}
