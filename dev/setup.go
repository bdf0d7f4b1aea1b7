package main

import (
	"database/sql"
	"fmt"
	"os"

	"easypce-backend/lib/configutil"
	catalogdb "easypce-backend/services/catalog/db"

	_ "modernc.org/sqlite"
)

func createCatalogDB() error {
	path, err := configutil.ResolvePath("<dev_state>/catalog.db")
	if err != nil {
		return err
	}

	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("database already created at", path)
		return nil
	}

	fmt.Println("creating database at", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(catalogdb.Schema)
	return err
}

// the sample config already points at <dev_state>, a local override is
// where developers put their smtp credentials.
func copySampleConfig() error {
	const local = "scrape.local.json5"
	_, err := os.Stat(local)
	if err == nil {
		fmt.Println("local config already exists at", local)
		return nil
	}
	err = os.WriteFile(local, []byte("{\n  // overrides for scrape.json5\n}\n"), 0666)
	if err != nil {
		return err
	}
	fmt.Println("created", local)
	return nil
}
