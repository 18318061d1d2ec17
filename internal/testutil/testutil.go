// Package testutil provides shared test helpers for setting up content
// directories, databases and services.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iteam-company/blockpress/internal/converter"
	"github.com/iteam-company/blockpress/internal/docservice"
	"github.com/iteam-company/blockpress/internal/schema"
	"github.com/iteam-company/blockpress/internal/storage"
	"github.com/iteam-company/blockpress/internal/store"
)

// Extensions is the content extension set used by tests.
var Extensions = []string{".md", ".markdown", ".html", ".htm"}

// FixedTime is the clock value used by TestService conversions.
var FixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "blockpress-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestContent creates a temporary content directory with a storage.Provider.
func TestContent(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	p, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, p
}

// WriteFile writes a content file relative to dir, creating parents.
func WriteFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	abs := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestService wires a converter with a fixed clock, the schema validator, a
// temporary database and a temporary content directory into a document
// service.
func TestService(t *testing.T, opts ...docservice.Option) (*docservice.Service, *store.DB, string) {
	t.Helper()
	return TestServiceWith(t, nil, opts...)
}

// TestServiceWith is TestService with extra converter options.
func TestServiceWith(t *testing.T, convOpts []converter.Option, opts ...docservice.Option) (*docservice.Service, *store.DB, string) {
	t.Helper()
	dir, content := TestContent(t)
	db := TestDB(t)
	v, err := schema.NewValidator()
	if err != nil {
		t.Fatal(err)
	}
	convOpts = append([]converter.Option{converter.WithClock(func() time.Time { return FixedTime })}, convOpts...)
	all := append([]docservice.Option{
		docservice.WithValidator(v),
		docservice.WithContent(content, Extensions),
	}, opts...)
	return docservice.New(converter.New(convOpts...), db, all...), db, dir
}
