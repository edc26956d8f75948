package persistence

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"brokerage-gateway/infrastructure/configuration"

	_ "github.com/microsoft/go-mssqldb"
)

// MSSQLDSN renders the sqlserver:// URL for cfg. Azure SQL requires encrypt=true;
// local containers get TrustServerCertificate for their self-signed cert.
func MSSQLDSN(cfg configuration.Db) string {
	q := url.Values{}
	if cfg.Name != "" {
		q.Set("database", cfg.Name)
	}
	q.Set("encrypt", "true")
	if cfg.Host == "localhost" || cfg.Host == "127.0.0.1" {
		q.Set("TrustServerCertificate", "true")
	}

	u := &url.URL{Scheme: "sqlserver", Host: fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewMSSQLDB opens the access-token store on Azure SQL / SQL Server.
func NewMSSQLDB() (*sql.DB, error) {
	db, err := sql.Open("sqlserver", MSSQLDSN(configuration.C.Database.Mssql))
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(time.Minute)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
