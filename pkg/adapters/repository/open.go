// Package repository selects a storage adapter from a database URL.
package repository

import (
	"context"
	"strings"

	"github.com/wadjakorntonsri/linkshort/pkg/adapters/repository/postgres"
	"github.com/wadjakorntonsri/linkshort/pkg/adapters/repository/sqlstore"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
)

// Kind reports which adapter Open would use for databaseURL.
func Kind(databaseURL string) string {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(databaseURL, "mysql://"):
		return "mysql"
	case strings.HasPrefix(databaseURL, "libsql://"), strings.HasPrefix(databaseURL, "wss://"):
		return "libsql"
	default:
		return "sqlite"
	}
}

// Open connects to databaseURL and migrates the schema. Anything that is not a
// recognised URL scheme is treated as a local SQLite path.
func Open(ctx context.Context, databaseURL string) (ports.Store, error) {
	switch Kind(databaseURL) {
	case "postgres":
		return postgres.Open(ctx, databaseURL)
	case "mysql":
		return sqlstore.OpenMySQL(ctx, databaseURL)
	case "libsql":
		return sqlstore.OpenLibSQL(ctx, databaseURL)
	default:
		return sqlstore.OpenSQLite(ctx, databaseURL)
	}
}
