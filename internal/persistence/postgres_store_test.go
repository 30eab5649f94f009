package persistence

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/suite"

	"github.com/petrijr/seqflow/internal/testutil"
)

type PostgresStoreTestSuite struct {
	suite.Suite
	db    *sql.DB
	store *SQLStore
}

func TestPostgresStoreTestSuite(t *testing.T) {
	dsn := testutil.GetPostgresDSN(t)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewPostgresStore(context.Background(), db)
	if err != nil {
		t.Fatalf("NewPostgresStore failed: %v", err)
	}

	suite.Run(t, &PostgresStoreTestSuite{db: db, store: store})
}

func (p *PostgresStoreTestSuite) SetupTest() {
	_, err := p.db.Exec("TRUNCATE TABLE runs, worker_events")
	p.NoError(err, "TRUNCATE failed")
}

func (p *PostgresStoreTestSuite) TestContract() {
	testStoreContract(p.T(), p.store)
}
