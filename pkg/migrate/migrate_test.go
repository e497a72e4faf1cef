package migrate

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_EmbeddedMigrations(t *testing.T) {
	require.NoError(t, Validate())
}

func TestStockLedgerMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "_create_stock_ledger.sql")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS stock_levels",
		"CHECK (quantity >= 0)",
		"PRIMARY KEY (branch_id, product_id)",
		"seq        BIGSERIAL PRIMARY KEY",
		"CHECK (delta <> 0)",
		"DROP TABLE IF EXISTS ledger_events",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestMovementsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "_create_movements.sql")
	assert.Contains(t, content, "CHECK (from_branch_id <> to_branch_id)")
	assert.Contains(t, content, "CHECK (status IN ('waiting','done','rejected'))")
}

func TestSalesMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "_create_sales.sql")
	assert.Contains(t, content, "CHECK (credit = 0 OR client_id IS NOT NULL)")
	assert.Contains(t, content, "returned_quantity <= quantity")
}

func TestValidateFS_Rejects(t *testing.T) {
	bad := fstest.MapFS{"m/001_x.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}}
	assert.Error(t, validateFS(bad, "m"))

	dup := fstest.MapFS{
		"m/20260101000001_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"m/20260101000001_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	}
	assert.Error(t, validateFS(dup, "m"))

	noDown := fstest.MapFS{"m/20260101000001_a.sql": {Data: []byte("-- +goose Up\n")}}
	assert.Error(t, validateFS(noDown, "m"))
}

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	entries, err := fs.ReadDir(embedded, Dir)
	require.NoError(t, err)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			b, err := fs.ReadFile(embedded, Dir+"/"+e.Name())
			require.NoError(t, err)
			return string(b)
		}
	}
	t.Fatalf("migración *%s no encontrada", suffix)
	return ""
}
