package commands

import (
	"database/sql"
	"fmt"

	"easypce-backend/services/catalog/db"
	"easypce-backend/services/catalog/reconcile"
)

func openStore(cfg Config) (*reconcile.Store, *sql.DB, error) {
	database, err := cfg.Database.OpenDB()
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	_, err = database.Exec(db.Schema)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("apply schema: %w", err)
	}
	store := reconcile.NewStore(database, reconcile.Options{
		ClearMissingEnrollParams: cfg.Pipeline.ClearMissingEnrollParams,
	})
	return store, database, nil
}
