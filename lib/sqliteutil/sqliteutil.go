package sqliteutil

import (
	"database/sql"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Config points at either a local sqlite file or a remote libsql
// database. A non-empty Url wins.
type Config struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (config Config) OpenDB(schema string) (*sql.DB, error) {
	if config.Url == "" {
		return OpenDB(schema, config.File)
	}
	url := config.Url
	if config.AuthToken != "" {
		url += "?authToken=" + config.AuthToken
	}
	database, err := sql.Open("libsql", url)
	if err != nil {
		return nil, err
	}
	return applySchema(database, schema)
}

// OpenDB opens a sqlite database at `path` (":memory:" works) and applies
// `schema`, tolerating schemas that were already applied.
func OpenDB(schema, path string) (*sql.DB, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return applySchema(database, schema)
}

func applySchema(database *sql.DB, schema string) (*sql.DB, error) {
	_, err := database.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		database.Close()
		return nil, err
	}
	return database, nil
}
