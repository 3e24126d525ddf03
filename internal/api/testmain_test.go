package api

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/banshee-data/rutting.report/internal/auth"
	"github.com/banshee-data/rutting.report/internal/db"
	"github.com/banshee-data/rutting.report/internal/grid"
	"github.com/banshee-data/rutting.report/internal/testutil"
)

// The template database holds a testRows x testCols ramp and one user.
const (
	testRows     = 5
	testCols     = 4
	testUser     = "inspector"
	testPassword = "correct horse battery"
)

var (
	apiTestTemplatePath string
)

func TestMain(m *testing.M) {
	code := runAPITestMain(m)
	os.Exit(code)
}

func runAPITestMain(m *testing.M) int {
	tmpDir, err := os.MkdirTemp("", "rutting-api-template-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create API test template directory: %v\n", err)
		return 1
	}

	apiTestTemplatePath = filepath.Join(tmpDir, "template.db")

	if err := buildTemplateDB(apiTestTemplatePath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize API test template DB: %v\n", err)
		_ = os.RemoveAll(tmpDir)
		return 1
	}

	code := m.Run()
	_ = os.RemoveAll(tmpDir)
	return code
}

func buildTemplateDB(path string) error {
	templateDB, err := db.NewDB(path)
	if err != nil {
		return err
	}
	defer templateDB.Close()

	ctx := context.Background()
	samples, err := grid.ReadSamplesCSV(strings.NewReader(testutil.SamplesCSV(testRows, testCols, testutil.Ramp(testCols))))
	if err != nil {
		return err
	}
	if _, err := templateDB.ImportSamples(ctx, db.DefaultSamplesTable, samples); err != nil {
		return err
	}

	a, err := auth.NewAuthenticator(templateDB, bcrypt.MinCost)
	if err != nil {
		return err
	}
	if err := a.SetPassword(ctx, testUser, testPassword); err != nil {
		return err
	}

	if _, err := templateDB.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

func cloneAPITestDB(t *testing.T) string {
	t.Helper()

	if apiTestTemplatePath == "" {
		t.Fatal("API test template DB not initialized")
	}

	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := copyFile(apiTestTemplatePath, dbPath); err != nil {
		t.Fatalf("failed to clone API test DB template: %v", err)
	}

	return dbPath
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}
