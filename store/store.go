package store

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/colpack/colpack/column"
	"github.com/colpack/colpack/compress"
	"github.com/colpack/colpack/element"
	"github.com/colpack/colpack/errs"
	"github.com/colpack/colpack/format"
	"github.com/colpack/colpack/internal/options"
)

var (
	bucketSeries = []byte("series")
	bucketMeta   = []byte("meta")
)

// Meta describes one stored series.
type Meta struct {
	// Count is the number of logical elements in the series, holes included.
	Count int `msgpack:"count"`
	// UpdatedAt is the time of the last successful Append, in UTC.
	UpdatedAt time.Time `msgpack:"updated_at"`
	// Codec is the format.CompressionType the binary is stored with.
	Codec uint8 `msgpack:"codec"`
}

// Store is an embedded column store backed by bbolt. A Store is safe for
// concurrent use; bbolt serializes writers and individual series binaries
// are only touched inside transactions.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger

	compression format.CompressionType
	codec       compress.Codec
	colOpts     []column.Option

	fileMode os.FileMode
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
}

// Option configures a Store.
type Option = options.Option[*Store]

// WithLogger sets the logger for store warnings. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return options.New(func(s *Store) error {
		if logger == nil {
			return fmt.Errorf("nil logger")
		}
		s.logger = logger

		return nil
	})
}

// WithFileMode sets the database file mode. Defaults to 0600.
func WithFileMode(mode os.FileMode) Option {
	return options.NoError(func(s *Store) {
		s.fileMode = mode
	})
}

// WithTimeout sets how long Open waits for the bbolt file lock.
// Zero (the default) waits indefinitely.
func WithTimeout(timeout time.Duration) Option {
	return options.NoError(func(s *Store) {
		s.timeout = timeout
	})
}

// WithCompression sets the at-rest codec for newly written series binaries.
// Existing series keep their recorded codec until rewritten.
func WithCompression(compression format.CompressionType) Option {
	return options.New(func(s *Store) error {
		codec, err := compress.GetCodec(compression)
		if err != nil {
			return err
		}
		s.compression = compression
		s.codec = codec

		return nil
	})
}

// WithColumnOptions sets column options applied when building or reopening
// series columns.
func WithColumnOptions(opts ...column.Option) Option {
	return options.NoError(func(s *Store) {
		s.colOpts = append(s.colOpts, opts...)
	})
}

// Open opens (creating if needed) a store at the given path.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		logger:      slog.Default(),
		compression: format.CompressionNone,
		fileMode:    0o600,
	}
	s.codec, _ = compress.GetCodec(s.compression)

	if err := options.Apply(s, opts...); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, s.fileMode, &bolt.Options{Timeout: s.timeout})
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSeries); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)

		return err
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("init store %q: %w", path, err)
	}

	s.db = db

	return s, nil
}

// Close closes the store. Further operations return errs.ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

func (s *Store) ensureOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errs.ErrStoreClosed
	}

	return nil
}

// Append appends elements to a series, creating the series on first use.
// The stored binary is reopened rather than re-encoded; a binary that fails
// to reopen is decoded and rebuilt, with a warning logged.
func (s *Store) Append(series string, elems ...element.Element) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if series == "" {
		return fmt.Errorf("%w: empty series name", errs.ErrInvalidColumnName)
	}
	if len(elems) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(series)
		data := tx.Bucket(bucketSeries).Get(key)
		meta, metaErr := readMeta(tx, key)

		builder, err := s.openBuilder(series, data, meta, metaErr)
		if err != nil {
			return err
		}

		for _, el := range elems {
			if el.IsMissing() {
				builder.Skip()
			} else {
				builder.Append(el)
			}
		}

		stored, err := s.codec.Compress(builder.Finalize())
		if err != nil {
			return fmt.Errorf("compress series %q: %w", series, err)
		}
		if err := tx.Bucket(bucketSeries).Put(key, stored); err != nil {
			return err
		}

		meta.Count += len(elems)
		meta.UpdatedAt = time.Now().UTC()
		meta.Codec = uint8(s.compression)

		encoded, err := msgpack.Marshal(&meta)
		if err != nil {
			return fmt.Errorf("encode meta for %q: %w", series, err)
		}

		return tx.Bucket(bucketMeta).Put(key, encoded)
	})
}

// openBuilder turns a stored series binary back into a live column builder.
// Missing series start fresh; binaries that fail to reopen are decoded and
// rebuilt value by value.
func (s *Store) openBuilder(series string, data []byte, meta Meta, metaErr error) (*column.Builder, error) {
	if data == nil {
		return column.NewBuilder(s.colOpts...), nil
	}
	if metaErr != nil {
		return nil, metaErr
	}

	raw, err := s.decompress(data, meta)
	if err != nil {
		return nil, fmt.Errorf("series %q: %w", series, err)
	}

	builder, err := column.Reopen(raw, s.colOpts...)
	if err == nil {
		return builder, nil
	}

	// Reopen only handles binaries it can resume byte-exactly; anything
	// else is rebuilt from decoded values.
	s.logger.Warn("column reopen failed, rebuilding series",
		slog.String("series", series),
		slog.Any("error", err))

	values, decodeErr := column.NewDecoder(raw).Values()
	if decodeErr != nil {
		return nil, fmt.Errorf("series %q: %w", series, decodeErr)
	}

	builder = column.NewBuilder(s.colOpts...)
	for _, el := range values {
		if el.IsMissing() {
			builder.Skip()
		} else {
			builder.Append(el)
		}
	}

	return builder, nil
}

func (s *Store) decompress(data []byte, meta Meta) ([]byte, error) {
	codec, err := compress.GetCodec(format.CompressionType(meta.Codec))
	if err != nil {
		return nil, fmt.Errorf("%w: stored codec %d", errs.ErrUnsupportedCompression, meta.Codec)
	}

	raw, err := codec.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidBinary, err)
	}

	return raw, nil
}

func readMeta(tx *bolt.Tx, key []byte) (Meta, error) {
	data := tx.Bucket(bucketMeta).Get(key)
	if data == nil {
		return Meta{}, nil
	}

	var meta Meta
	if err := msgpack.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("decode series meta: %w", err)
	}

	return meta, nil
}

// Get returns all elements of a series, holes as missing elements.
func (s *Store) Get(series string) ([]element.Element, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	var values []element.Element
	err := s.db.View(func(tx *bolt.Tx) error {
		key := []byte(series)
		data := tx.Bucket(bucketSeries).Get(key)
		if data == nil {
			return fmt.Errorf("%w: %q", errs.ErrSeriesNotFound, series)
		}

		meta, err := readMeta(tx, key)
		if err != nil {
			return err
		}

		raw, err := s.decompress(data, meta)
		if err != nil {
			return fmt.Errorf("series %q: %w", series, err)
		}

		values, err = column.NewDecoder(raw).Values()

		return err
	})
	if err != nil {
		return nil, err
	}

	return values, nil
}

// Meta returns the stored metadata for a series.
func (s *Store) Meta(series string) (Meta, error) {
	if err := s.ensureOpen(); err != nil {
		return Meta{}, err
	}

	var meta Meta
	err := s.db.View(func(tx *bolt.Tx) error {
		key := []byte(series)
		if tx.Bucket(bucketSeries).Get(key) == nil {
			return fmt.Errorf("%w: %q", errs.ErrSeriesNotFound, series)
		}

		var err error
		meta, err = readMeta(tx, key)

		return err
	})
	if err != nil {
		return Meta{}, err
	}

	return meta, nil
}

// Series returns all series names in key order.
func (s *Store) Series() ([]string, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSeries).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return names, nil
}

// Delete removes a series and its metadata.
func (s *Store) Delete(series string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(series)
		if tx.Bucket(bucketSeries).Get(key) == nil {
			return fmt.Errorf("%w: %q", errs.ErrSeriesNotFound, series)
		}
		if err := tx.Bucket(bucketSeries).Delete(key); err != nil {
			return err
		}

		return tx.Bucket(bucketMeta).Delete(key)
	})
}
