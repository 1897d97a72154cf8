// Package repomanager wires the concrete repository implementations to a
// database handle and owns schema initialization. Repositories accept a
// dbx.DBTX so services can hand them either the root connection or an open
// transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/bans"
	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/counters"
	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/credentials"
	"github.com/dmitrijs2005/sessionvault/internal/dbx"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Credentials(db dbx.DBTX) credentials.Repository
	Bans(db dbx.DBTX) bans.Repository
	Counters(db dbx.DBTX) counters.Repository
}
