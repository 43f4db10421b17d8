package sqldb

import (
	"database/sql"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// PostgresConnector opens Postgres handles through pgx's database/sql adapter.
type PostgresConnector struct{}

func (PostgresConnector) Dialect() Dialect { return Postgres{} }

func (PostgresConnector) Open(loc Locator, admin bool, timeout time.Duration) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(postgresDSN(loc, admin))
	if err != nil {
		return nil, err
	}
	cfg.ConnectTimeout = timeout
	return stdlib.OpenDB(*cfg), nil
}

func postgresDSN(loc Locator, admin bool) string {
	port := loc.Port
	if port == 0 {
		port = 5432
	}
	db := loc.Database
	if admin {
		db = "postgres"
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(loc.Host, strconv.Itoa(port)),
		Path:   "/" + db,
	}
	if loc.User != "" {
		u.User = url.UserPassword(loc.User, loc.Password)
	}
	q := url.Values{}
	for k, v := range loc.Params {
		q[k] = v
	}
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "prefer")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
