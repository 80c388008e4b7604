package sqlstore

import (
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

// dialect holds what differs between the SQL engines served by this package.
// All of them use ? placeholders.
type dialect struct {
	name   string
	driver string
	schema []string

	// dayExpr renders a column as a YYYY-MM-DD string.
	dayExpr func(col string) string
	// timeArg converts a time into the value bound for DATETIME columns.
	timeArg func(t time.Time) any
	// uniqueViolation reports whether err is a UNIQUE constraint failure.
	uniqueViolation func(err error) bool
}

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite",
	schema: sqliteSchema,
	dayExpr: func(col string) string {
		return "strftime('%Y-%m-%d', " + col + ")"
	},
	timeArg:         sqliteTime,
	uniqueViolation: sqliteUniqueViolation,
}

// libsqlDialect talks to Turso. The SQL is SQLite's but errors come back over
// the wire as plain text.
var libsqlDialect = dialect{
	name:            "libsql",
	driver:          "libsql",
	schema:          sqliteSchema,
	dayExpr:         sqliteDialect.dayExpr,
	timeArg:         sqliteTime,
	uniqueViolation: sqliteUniqueViolation,
}

var mysqlDialect = dialect{
	name:   "mysql",
	driver: "mysql",
	schema: mysqlSchema,
	dayExpr: func(col string) string {
		return "DATE_FORMAT(" + col + ", '%Y-%m-%d')"
	},
	timeArg: func(t time.Time) any { return t.UTC() },
	uniqueViolation: func(err error) bool {
		var myErr *mysql.MySQLError
		return errors.As(err, &myErr) && myErr.Number == 1062
	},
}

// sqliteTime stores times as sortable UTC text so range filters compare correctly
// and strftime can parse them.
func sqliteTime(t time.Time) any {
	return t.UTC().Format(sqliteTimeLayout)
}

func sqliteUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) && sqErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		created_at DATETIME NOT NULL,
		last_login DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		original_url TEXT NOT NULL,
		short_code TEXT NOT NULL UNIQUE,
		owner_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
		click_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		last_accessed_at DATETIME,
		active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_owner_id ON links(owner_id)`,
	`CREATE TABLE IF NOT EXISTS click_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		link_id INTEGER NOT NULL REFERENCES links(id),
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		referrer TEXT NOT NULL DEFAULT '',
		browser TEXT NOT NULL DEFAULT '',
		os TEXT NOT NULL DEFAULT '',
		device_type TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_click_events_link_id ON click_events(link_id)`,
	`CREATE INDEX IF NOT EXISTS idx_click_events_created_at ON click_events(created_at)`,
}

// Short codes are case-sensitive, so short_code uses a binary collation.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL DEFAULT '',
		role VARCHAR(16) NOT NULL DEFAULT 'user',
		created_at DATETIME NOT NULL,
		last_login DATETIME NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS links (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		original_url TEXT NOT NULL,
		short_code VARCHAR(32) CHARACTER SET ascii COLLATE ascii_bin NOT NULL UNIQUE,
		owner_id BIGINT NULL,
		click_count BIGINT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		last_accessed_at DATETIME NULL,
		active TINYINT(1) NOT NULL DEFAULT 1,
		INDEX idx_links_owner_id (owner_id),
		CONSTRAINT fk_links_owner FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS click_events (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		link_id BIGINT NOT NULL,
		ip_address VARCHAR(64) NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL,
		referrer TEXT NOT NULL,
		browser VARCHAR(32) NOT NULL DEFAULT '',
		os VARCHAR(32) NOT NULL DEFAULT '',
		device_type VARCHAR(32) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		INDEX idx_click_events_link_id (link_id),
		INDEX idx_click_events_created_at (created_at),
		CONSTRAINT fk_click_events_link FOREIGN KEY (link_id) REFERENCES links(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
