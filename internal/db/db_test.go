package db

import (
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func TestInitCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "keypad.db")

	pair, err := Init(path)
	require.NoError(t, err)
	defer pair.Close()

	require.NoError(t, pair.Ping())

	for _, table := range []string{"device_settings", "touch_calibration", "audit_events"} {
		columns, err := tableColumns(pair.Writer(), table)
		require.NoError(t, err)
		require.NotEmpty(t, columns, table)
	}

	auditColumns, err := tableColumns(pair.Writer(), "audit_events")
	require.NoError(t, err)
	require.True(t, auditColumns["screen"])
	require.True(t, auditColumns["zone_id"])
}

func TestInitIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keypad.db")

	first, err := Init(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Init(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestInitRequiresPath(t *testing.T) {
	_, err := Init("")
	require.Error(t, err)
}
