package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/splitq/internal/codec"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is the user_version of a fully migrated database.
// It equals the version of the last entry in migrations.
const currentSchemaVersion = 1

// Config configures Open.
type Config struct {
	// Path is the SQLite database file. It is created if missing.
	Path string

	// Logger receives debug records for writes. Defaults to slog.Default().
	Logger *slog.Logger

	// IDs assigns payload data ids. Defaults to UUIDv7Generator.
	IDs IDGenerator
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.IDs == nil {
		c.IDs = UUIDv7Generator{}
	}
	return c
}

// Store provides durable storage for cached query results.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db     *sql.DB
	log    *slog.Logger
	ids    IDGenerator
	packer *codec.Compressor
	unpack *codec.Decompressor
}

// Open creates or opens the cache database at cfg.Path and migrates it.
// Opening an existing database leaves its entries intact.
func Open(cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: pragmas are per connection and sqlite has one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	packer, err := codec.NewCompressor()
	if err != nil {
		db.Close()
		return nil, err
	}
	unpack, err := codec.NewDecompressor()
	if err != nil {
		packer.Close()
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		log:    cfg.Logger.With("component", "store", "path", cfg.Path),
		ids:    cfg.IDs,
		packer: packer,
		unpack: unpack,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.packer.Close()
	s.unpack.Close()
	err := s.db.Close()
	s.db = nil
	return err
}

// pragmas run on the single pooled connection right after it is opened.
var pragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

func applyPragmas(db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	return nil
}

// applySchema creates missing tables, then brings older databases up to
// currentSchemaVersion.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// migration upgrades a database from version-1 to version.
type migration struct {
	version int
	name    string
	stmt    string
}

var migrations = []migration{
	{1, "entry digest index", `CREATE INDEX IF NOT EXISTS idx_entries_digest ON entries(digest)`},
}

func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		if _, err := db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
