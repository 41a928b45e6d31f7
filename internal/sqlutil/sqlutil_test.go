package sqlutil

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	for _, stmt := range []string{
		"CREATE TABLE kv (k TEXT, v INTEGER)",
		"INSERT INTO kv VALUES ('a', 1), ('b', 2), ('c', 3)",
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
	return db
}

func TestQuery(t *testing.T) {
	db := openTestDB(t)

	got, err := Query(db, "row", "SELECT k, v FROM kv WHERE v >= ? ORDER BY k", func(rows *sql.Rows) (string, error) {
		var k string
		var v int
		err := rows.Scan(&k, &v)
		return k, err
	}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "b,c" {
		t.Errorf("Query = %v, want [b c]", got)
	}
}

func TestQueryWrapsErrors(t *testing.T) {
	db := openTestDB(t)

	if _, err := Query(db, "row", "SELECT nope FROM missing", func(rows *sql.Rows) (int, error) { return 0, nil }); err == nil || !strings.Contains(err.Error(), "failed to read rows") {
		t.Errorf("bad query error = %v", err)
	}

	boom := errors.New("boom")
	_, err := Query(db, "row", "SELECT k FROM kv", func(rows *sql.Rows) (int, error) { return 0, boom })
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "failed to scan row") {
		t.Errorf("scan error = %v", err)
	}
}
