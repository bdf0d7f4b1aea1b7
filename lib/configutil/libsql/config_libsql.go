package configlibsql

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"

	"easypce-backend/lib/configutil"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Struct selects either a local sqlite file or a remote libsql database.
type Struct struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (config Struct) OpenDB() (*sql.DB, error) {
	if config.Url != "" {
		return config.openRemote()
	}
	if config.File == "" {
		return nil, fmt.Errorf("a path was not specified")
	}
	return config.openFile()
}

func (config Struct) openRemote() (*sql.DB, error) {
	dsn := config.Url
	if config.AuthToken != "" {
		link, err := url.Parse(config.Url)
		if err != nil {
			return nil, err
		}
		query := link.Query()
		query.Set("authToken", config.AuthToken)
		link.RawQuery = query.Encode()
		dsn = link.String()
	}
	return sql.Open("libsql", dsn)
}

func (config Struct) openFile() (*sql.DB, error) {
	dbpath := config.File
	if dbpath != ":memory:" {
		resolved, err := configutil.ResolvePath(config.File)
		if err != nil {
			return nil, err
		}
		dbpath = resolved

		_, statErr := os.Stat(dbpath)
		if os.IsNotExist(statErr) {
			f, err := os.Create(dbpath)
			if err != nil {
				return nil, err
			}
			f.Close()
		}
	}

	db, err := sql.Open("sqlite", dbpath)
	if err != nil {
		return nil, err
	}
	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	if !strings.HasPrefix(dbpath, ":memory:") {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	_, err = db.Exec("PRAGMA foreign_keys=ON")
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
