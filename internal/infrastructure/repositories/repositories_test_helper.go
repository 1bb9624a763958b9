package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createContractTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE contracts (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		lawyer_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		status TEXT NOT NULL,
		fee_type TEXT NOT NULL,
		fee_percent REAL,
		fee_value REAL,
		fee_rate REAL,
		signed_client_at DATETIME,
		signed_lawyer_at DATETIME,
		doc_url TEXT,
		envelope_id TEXT UNIQUE,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createContractTransitionTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE contract_transitions (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL,
		from_status TEXT,
		to_status TEXT NOT NULL,
		event TEXT NOT NULL,
		actor_id TEXT,
		source TEXT NOT NULL,
		metadata TEXT DEFAULT '{}',
		created_at DATETIME
	);`)
}
