// Package store is the core of tissue: the dual-storage engine described in
// spec.md §2-§6. It owns the cache schema, the log importer, the write path,
// the query path, and the clean/migrate commands.
//
// Grounded throughout on
// _examples/yashwanth-reddy909-beads/internal/storage/sqlite/sqlite.go for
// the go-sqlite3/wazero wiring and connection-string shape, and on
// _examples/steveyegge-beads/internal/lockfile and
// _examples/other_examples/bd84051f_ttrei-beads__internal-importer-importer.go.go
// for the locking and import-orchestration idioms.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"

	"github.com/tissue-vcs/tissue/internal/idgen"
	"github.com/tissue-vcs/tissue/internal/jsonl"
	"github.com/tissue-vcs/tissue/internal/lockfile"
	"github.com/tissue-vcs/tissue/internal/revtoken"
)

// Layout file names under the store directory (spec.md §6).
const (
	LogFileName    = "issues.jsonl"
	CacheFileName  = "issues.db"
	LockFileName   = "lock"
	IgnoreFileName = ".gitignore"
	// DefaultDirName is the conventional store directory name.
	DefaultDirName = ".tissue"
	// DefaultPrefix is used when no prefix can be derived from context.
	DefaultPrefix = "tissue"
)

const ignoreContents = "issues.db\nissues.db-shm\nissues.db-wal\nlock\n"

// Store is an open handle on a tissue store directory: the cache connection,
// the lock file, and the cached prefix string — the only process-wide state
// spec.md §9 allows.
type Store struct {
	dir     string
	db      *sql.DB
	lock    *lockfile.Lock
	logPath string
	prefix  string
	revGen  *revtoken.Generator
}

// setupWASMCache configures a persistent wazero compilation cache so the
// go-sqlite3 WASM module doesn't recompile on every process start. Grounded
// verbatim on sqlite.go's setupWASMCache; the cache directory just moves
// under tissue's own namespace.
func setupWASMCache() {
	var cache wazero.CompilationCache
	if userCache, err := os.UserCacheDir(); err == nil {
		dir := filepath.Join(userCache, "tissue", "wasm")
		if c, err := wazero.NewCompilationCacheWithDir(dir); err == nil {
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
}

func init() {
	setupWASMCache()
}

func connString(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(300000)" + // 5 minutes, spec.md §4.4 "Durability pragmas"
		"&_time_format=sqlite"
}

func openCache(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("%w: create store directory: %v", ErrCacheError, err)
	}
	db, err := sql.Open("sqlite3", connString(dbPath))
	if err != nil {
		return nil, fmt.Errorf("%w: open cache: %v", ErrCacheError, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping cache: %v", ErrCacheError, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", ErrCacheError, err)
	}
	return db, nil
}

// Init creates a new store directory at dir, initializes an empty log, an
// empty cache, the lock file, and the .gitignore, and stores the normalized
// prefix (spec.md §6 "Storage directory lifecycle"). It does not refuse a dir
// that already contains a store: the existing log and .gitignore are kept,
// the stored prefix is replaced, and the cache is reconciled with the log.
func Init(dir, rawPrefix string) (*Store, error) {
	prefix, ok := idgen.NormalizePrefix(rawPrefix)
	if !ok {
		return nil, ErrInvalidPrefix
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
	}

	logPath := filepath.Join(dir, LogFileName)
	if err := jsonl.EnsureExists(logPath); err != nil {
		return nil, fmt.Errorf("%w: create log: %v", ErrCacheError, err)
	}
	ignorePath := filepath.Join(dir, IgnoreFileName)
	if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(ignorePath, []byte(ignoreContents), 0o644); err != nil { // #nosec G306 -- ignore file is not sensitive
			return nil, fmt.Errorf("%w: write .gitignore: %v", ErrCacheError, err)
		}
	}

	db, err := openCache(filepath.Join(dir, CacheFileName))
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO metadata(key, value) VALUES (?, ?)`, metaIDPrefix, prefix); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
	}

	lock, err := lockfile.Open(filepath.Join(dir, LockFileName))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: open lock file: %v", ErrCacheError, err)
	}

	s := &Store{dir: dir, db: db, lock: lock, logPath: logPath, prefix: prefix, revGen: revtoken.New()}
	if err := s.reconcile(context.Background()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Open opens an existing store directory, reconciling the cache with the log
// before returning (spec.md §2 "Data flow on every invocation").
func Open(dir string) (*Store, error) {
	logPath := filepath.Join(dir, LogFileName)
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return nil, ErrStoreNotFound
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
	}

	db, err := openCache(filepath.Join(dir, CacheFileName))
	if err != nil {
		return nil, err
	}

	prefix, err := loadMeta(db, metaIDPrefix)
	if err != nil {
		db.Close()
		return nil, err
	}
	if prefix == "" {
		prefix = DefaultPrefix
		if base := filepath.Base(filepath.Dir(dir)); base != "" && base != "." && base != string(filepath.Separator) {
			if norm, ok := idgen.NormalizePrefix(base); ok {
				prefix = norm
			}
		}
		if _, err := db.Exec(`INSERT OR REPLACE INTO metadata(key, value) VALUES (?, ?)`, metaIDPrefix, prefix); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
		}
	}

	lock, err := lockfile.Open(filepath.Join(dir, LockFileName))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: open lock file: %v", ErrCacheError, err)
	}

	s := &Store{dir: dir, db: db, lock: lock, logPath: logPath, prefix: prefix, revGen: revtoken.New()}
	if err := s.reconcile(context.Background()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the lock file and closes the cache connection.
func (s *Store) Close() error {
	var firstErr error
	if s.lock != nil {
		if err := s.lock.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Prefix returns the store's configured id prefix.
func (s *Store) Prefix() string { return s.prefix }

// SetPrefix updates the configured prefix for minting new issue ids
// (spec.md §6 "set-prefix"). It does not rename existing issues.
func (s *Store) SetPrefix(raw string) error {
	prefix, ok := idgen.NormalizePrefix(raw)
	if !ok {
		return ErrInvalidPrefix
	}
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO metadata(key, value) VALUES (?, ?)`, metaIDPrefix, prefix); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	s.prefix = prefix
	return nil
}

// Dir returns the store's directory path.
func (s *Store) Dir() string { return s.dir }

func loadMeta(db *sql.DB, key string) (string, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	return v, nil
}

// FindStoreDir walks upward from start looking for a directory named
// DefaultDirName, implementing the "existing .tissue found by walking
// upward" leg of spec.md §6's store-discovery contract.
func FindStoreDir(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, DefaultDirName)
		if fi, err := os.Stat(candidate); err == nil && fi.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
