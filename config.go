package objectdb

import "github.com/c2h5oh/datasize"

// Config controls the geometry and durability tradeoffs of an opened
// instance. It is translated into backing-store environment flags and
// size limits at Open time; it has no effect afterward.
type Config struct {
	// MaxSize is the hard cap on the memory-mapped region. Parseable from
	// strings like "2GB" via datasize.ByteSize, so it can come straight out
	// of a config file instead of a raw byte count.
	MaxSize datasize.ByteSize
	// RelaxedDurability skips fsync on commit when true. Faster, but a
	// process crash (not just a power loss) can lose the last few commits.
	RelaxedDurability bool
	// MaxCollections bounds the schema arena. Zero means unlimited.
	MaxCollections int
}

// DefaultConfig returns a Config with a conservative 1GB map and durable
// commits.
func DefaultConfig() Config {
	return Config{
		MaxSize:           1 * datasize.GB,
		RelaxedDurability: false,
	}
}

// Validate reports IllegalArg if the configuration cannot be opened.
func (c Config) Validate() error {
	if c.MaxSize == 0 {
		return newErr(IllegalArg, "config: MaxSize must be greater than zero")
	}
	if c.MaxCollections < 0 {
		return newErr(IllegalArg, "config: MaxCollections must not be negative")
	}
	return nil
}
