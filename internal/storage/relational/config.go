package relational

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4/database"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the database and sizes the connection pool. For sqlite
// DSN is a file path.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c Config) Validate() error {
	if _, err := dialectFor(c.Driver); err != nil {
		return err
	}
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("%s: empty DSN", c.Driver)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("%s: negative pool size", c.Driver)
	}
	return nil
}

// dialect holds the few differences between the supported databases.
type dialect struct {
	name          string
	driverName    string
	numbered      bool // $1, $2 placeholders instead of ?
	migrateDriver func(*sql.DB) (database.Driver, error)
}

var dialects = map[string]dialect{
	DriverSQLite: {
		name:          DriverSQLite,
		driverName:    "sqlite",
		migrateDriver: sqliteMigrateDriver,
	},
	DriverPostgres: {
		name:          DriverPostgres,
		driverName:    "postgres",
		numbered:      true,
		migrateDriver: postgresMigrateDriver,
	},
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

// rebind rewrites ? placeholders for dialects that number them. Queries in
// this package never contain a literal question mark.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dsn returns the connection string. sqlite connections get foreign keys
// and a busy timeout on every pooled connection.
func (d dialect) dsn(raw string) string {
	if d.name != DriverSQLite {
		return raw
	}
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
