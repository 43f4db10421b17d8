package sqldb

import (
	"database/sql"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLConnector opens MySQL handles with go-sql-driver/mysql.
type MySQLConnector struct{}

func (MySQLConnector) Dialect() Dialect { return MySQL{} }

func (MySQLConnector) Open(loc Locator, admin bool, timeout time.Duration) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = loc.User
	cfg.Passwd = loc.Password
	cfg.Net = "tcp"
	port := loc.Port
	if port == 0 {
		port = 3306
	}
	cfg.Addr = net.JoinHostPort(loc.Host, strconv.Itoa(port))
	if !admin {
		cfg.DBName = loc.Database
	}
	cfg.ParseTime = true
	cfg.Timeout = timeout
	// Silence notes raised by CREATE ... IF NOT EXISTS on existing objects.
	cfg.Params = map[string]string{"sql_notes": "0"}

	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(conn), nil
}
