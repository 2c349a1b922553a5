package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fmpmunge/internal/storage"
	"fmpmunge/internal/table"
)

func newMemRepo(tb testing.TB, key string) *Repository {
	tb.Helper()
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: ":memory:", Table: "items", KeyColumn: key})
	require.NoError(tb, err)
	tb.Cleanup(closeFn)
	return r
}

func count(tb testing.TB, db *sql.DB, tableName string) int {
	tb.Helper()
	var n int
	require.NoError(tb, db.QueryRow(`SELECT COUNT(*) FROM "`+tableName+`"`).Scan(&n))
	return n
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	got, err := BuildCreateTableSQL(storage.TableDef{
		Table:   "main.items",
		Columns: []string{"row_key", "source"},
		Key:     "row_key",
	})
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"main\".\"items\" (\n"+
		"  \"row_key\" TEXT NOT NULL,\n"+
		"  \"source\" TEXT,\n"+
		"  PRIMARY KEY (\"row_key\")\n);", got)

	_, err = BuildCreateTableSQL(storage.TableDef{Columns: []string{"a"}})
	assert.Error(t, err)
	_, err = BuildCreateTableSQL(storage.TableDef{Table: "t"})
	assert.Error(t, err)
}

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `INSERT INTO "items" ("a", "b") VALUES (?, ?)`,
		insertSQL("items", []string{"a", "b"}, ""))
	assert.Equal(t, `INSERT INTO "items" ("k", "b") VALUES (?, ?) ON CONFLICT ("k") DO UPDATE SET "b" = excluded."b"`,
		insertSQL("items", []string{"k", "b"}, "k"))
	assert.Equal(t, `INSERT INTO "items" ("k") VALUES (?) ON CONFLICT ("k") DO NOTHING`,
		insertSQL("items", []string{"k"}, "k"))
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
	assert.Equal(t, `"main"."items"`, quoteFQN("main.items"))
}

func TestCopyFrom_UpsertsByKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newMemRepo(t, "row_key")
	require.NoError(t, r.Exec(ctx, `CREATE TABLE "items" ("row_key" TEXT NOT NULL PRIMARY KEY, "name" TEXT)`))

	cols := []string{"row_key", "name"}
	n, err := r.CopyFrom(ctx, cols, [][]any{{"k1", "Jones"}, {"k2", "Smith"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = r.CopyFrom(ctx, cols, [][]any{{"k1", "Jones, Ann"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, 2, count(t, r.db, "items"))
	var name string
	require.NoError(t, r.db.QueryRow(`SELECT "name" FROM "items" WHERE "row_key" = 'k1'`).Scan(&name))
	assert.Equal(t, "Jones, Ann", name)
}

func TestCopyFrom_RollsBackOnBadRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newMemRepo(t, "")
	require.NoError(t, r.Exec(ctx, `CREATE TABLE "items" ("a" TEXT, "b" TEXT)`))

	_, err := r.CopyFrom(ctx, []string{"a", "b"}, [][]any{{"1", "2"}, {"3"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1 has 1 values, want 2")
	assert.Equal(t, 0, count(t, r.db, "items"))
}

func TestCopyFrom_Edges(t *testing.T) {
	t.Parallel()

	r := newMemRepo(t, "")
	n, err := r.CopyFrom(context.Background(), []string{"a"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = r.CopyFrom(context.Background(), nil, [][]any{{"x"}})
	assert.Error(t, err)

	assert.NoError(t, r.Exec(context.Background(), "   "))
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{})
	assert.Error(t, err)
}

// A full export through the factory lands every row once, including columns
// added after the input was read, and re-running it replaces rows instead of
// duplicating them.
func TestExportRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "export.db")
	tbl := table.New([]string{"Authoritized Name", "URI"}, []table.Row{
		{"Authoritized Name": "Jones", "URI": "http://id.loc.gov/authorities/names/n1"},
		{"Authoritized Name": "Smith", "URI": ""},
		{"Authoritized Name": "Brown", "URI": "http://viaf.org/viaf/9"},
	})
	tbl.Set(2, "nameOtherVIAF", "http://viaf.org/viaf/9")
	tbl.AddColumn("Name Type")
	td := storage.Definition("processed_data", tbl.Columns)

	for run := 0; run < 2; run++ {
		repo, err := storage.New(ctx, storage.Config{
			Kind:      "sqlite",
			DSN:       path,
			Table:     td.Table,
			Columns:   td.Columns,
			KeyColumn: td.Key,
		})
		require.NoError(t, err)
		require.NoError(t, storage.EnsureTable(ctx, "sqlite", repo, td))

		n, err := storage.Export(ctx, repo, tbl, storage.ExportOptions{
			Source:    "input.csv",
			BatchSize: 2,
			Logger:    zaptest.NewLogger(t),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		repo.Close()
	}

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 3, count(t, db, "processed_data"))
	var uri string
	require.NoError(t, db.QueryRow(
		`SELECT "uri" FROM "processed_data" WHERE "authoritized_name" = 'Brown'`).Scan(&uri))
	assert.Equal(t, "http://viaf.org/viaf/9", uri)

	var viaf, nameType string
	require.NoError(t, db.QueryRow(
		`SELECT "nameotherviaf", "name_type" FROM "processed_data" WHERE "authoritized_name" = 'Brown'`).Scan(&viaf, &nameType))
	assert.Equal(t, "http://viaf.org/viaf/9", viaf)
	assert.Empty(t, nameType)
}

func TestAdapter_UsesHookAndCloses(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var got Config
	closed := 0
	newRepository = func(_ context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{cfg: cfg}, func() { closed++ }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{
		Kind: "sqlite", DSN: "x.db", Table: "t", Columns: []string{"row_key"}, KeyColumn: "row_key",
	})
	require.NoError(t, err)
	assert.Equal(t, Config{DSN: "x.db", Table: "t", Columns: []string{"row_key"}, KeyColumn: "row_key"}, got)

	repo.Close()
	assert.Equal(t, 1, closed)
}
