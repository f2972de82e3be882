// Package modules is the host-side half of the `import` contract (spec
// §4.3/§6): given a source path, produce a compiled *ir.Bytecode, reusing a
// previous compilation when the file's content hasn't changed since. It
// generalizes the teacher's modules.LoadWorld (which always recompiles,
// single-file or multi-module) into a cached single-file resolver backed by
// a local SQLite database, since Lumen has no package/FQN system — one
// source path compiles to one module.
package modules

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"

	"lumen/internal/compiler"
	"lumen/internal/ir"
	"lumen/internal/lexer"
	"lumen/internal/parser"
)

// entry is the CBOR-wrapped envelope stored in the cache, one row per
// absolute source path: the serialized §6 on-disk bytecode plus enough
// metadata to decide whether it's still valid.
type entry struct {
	ContentHash [32]byte
	ModTime     int64
	Payload     []byte
}

// Cache resolves import paths to compiled bytecode, memoizing compilations
// in a SQLite database so repeated imports of the same path — within one
// process or across separate `lumen run` invocations sharing CacheDir —
// skip relexing, reparsing and recompiling.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite-backed cache at
// filepath.Join(cacheDir, "modules.db").
func Open(cacheDir string) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("modules: cannot create cache dir: %w", err)
	}
	dbPath := filepath.Join(cacheDir, "modules.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("modules: cannot open cache db: %w", err)
	}
	const schema = `
		CREATE TABLE IF NOT EXISTS modules (
			path TEXT PRIMARY KEY,
			envelope BLOB NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("modules: cannot create schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Resolve compiles the source file at path (absolute or relative to
// execRoot), reusing a cached compilation when the file's content hash and
// modification time match what's stored.
func (c *Cache) Resolve(execRoot, importPath string) (*ir.Bytecode, error) {
	abs := importPath
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(execRoot, importPath)
	}
	abs = filepath.Clean(abs)

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("modules: cannot stat %s: %w", abs, err)
	}
	source, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("modules: cannot read %s: %w", abs, err)
	}
	hash := blake2b.Sum256(source)
	mtime := info.ModTime().UnixNano()

	if bc, ok := c.lookup(abs, hash, mtime); ok {
		return bc, nil
	}

	bc, err := compileSource(abs, string(source))
	if err != nil {
		return nil, err
	}
	if err := c.store(abs, hash, mtime, bc); err != nil {
		// A cache write failure doesn't invalidate a successful compile.
		return bc, nil
	}
	return bc, nil
}

func (c *Cache) lookup(path string, hash [32]byte, mtime int64) (*ir.Bytecode, bool) {
	var blob []byte
	err := c.db.QueryRow(`SELECT envelope FROM modules WHERE path = ?`, path).Scan(&blob)
	if err != nil {
		return nil, false
	}
	var e entry
	if err := cbor.Unmarshal(blob, &e); err != nil {
		return nil, false
	}
	if e.ContentHash != hash || e.ModTime != mtime {
		return nil, false
	}
	bc, err := ir.Read(bytes.NewReader(e.Payload))
	if err != nil {
		return nil, false
	}
	return bc, true
}

func (c *Cache) store(path string, hash [32]byte, mtime int64, bc *ir.Bytecode) error {
	var buf bytes.Buffer
	if err := ir.Write(&buf, bc); err != nil {
		return err
	}
	e := entry{ContentHash: hash, ModTime: mtime, Payload: buf.Bytes()}
	blob, err := cbor.Marshal(e)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(
		`INSERT INTO modules (path, envelope) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET envelope = excluded.envelope`,
		path, blob,
	)
	return err
}

// CompileUncached resolves and compiles importPath without consulting or
// populating any cache, for hosts that run without a Cache (e.g. the
// `lumen fmt` and `lumendebug` subcommands, which never need memoized
// imports across invocations).
func CompileUncached(execRoot, importPath string) (*ir.Bytecode, error) {
	abs := importPath
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(execRoot, importPath)
	}
	abs = filepath.Clean(abs)
	source, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("modules: cannot read %s: %w", abs, err)
	}
	return compileSource(abs, string(source))
}

func compileSource(path, source string) (*ir.Bytecode, error) {
	l := lexer.New(source)
	p := parser.New(l)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("modules: %s: parse errors: %v", path, errs)
	}
	bc, errs := compiler.Compile(path, source, prog)
	if !errs.Empty() {
		return nil, fmt.Errorf("modules: %s: %s", path, errs.Error())
	}
	return bc, nil
}

// Fingerprint returns a short hex content fingerprint for debug:dump
// headers, grounded on the same blake2b hash used for cache keys.
func Fingerprint(source []byte) string {
	sum := blake2b.Sum256(source)
	return fmt.Sprintf("%x", sum[:8])
}
