package database

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/dbsmedya/gomigrate/internal/config"
	"github.com/dbsmedya/gomigrate/internal/dialect"
)

// BuildDSN constructs the driver DSN for a connection profile.
func BuildDSN(cfg *config.DatabaseConfig) (string, error) {
	d, err := dialect.For(cfg.Engine)
	if err != nil {
		return "", err
	}

	switch d.(type) {
	case dialect.MySQL:
		return mysqlDSN(cfg), nil
	case dialect.Postgres:
		return postgresDSN(cfg), nil
	case dialect.SQLite:
		if cfg.Path == "" {
			return "", fmt.Errorf("sqlite profile has no path")
		}
		return "file:" + cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", nil
	case dialect.SQLServer:
		return sqlserverDSN(cfg), nil
	}
	return "", fmt.Errorf("no DSN builder for engine %q", d.Name())
}

func mysqlDSN(cfg *config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.ParseTime = true

	switch cfg.TLS {
	case "disable":
		mc.TLSConfig = "false"
	case "required":
		mc.TLSConfig = "true"
	default:
		mc.TLSConfig = "preferred"
	}

	return mc.FormatDSN()
}

func postgresDSN(cfg *config.DatabaseConfig) string {
	sslmode := "prefer"
	switch cfg.TLS {
	case "disable":
		sslmode = "disable"
	case "required":
		sslmode = "require"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}

func sqlserverDSN(cfg *config.DatabaseConfig) string {
	encrypt := "false"
	switch cfg.TLS {
	case "disable":
		encrypt = "disable"
	case "required":
		encrypt = "true"
	}

	query := url.Values{}
	query.Set("database", cfg.Database)
	query.Set("encrypt", encrypt)

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		RawQuery: query.Encode(),
	}
	return u.String()
}
