package persistence

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"brokerage-gateway/infrastructure/configuration"

	_ "github.com/lib/pq"
)

// PostgresDSN renders the lib/pq connection URL for cfg.
func PostgresDSN(cfg configuration.Db) string {
	u := &url.URL{Scheme: "postgres", Host: fmt.Sprintf("%s:%s", cfg.Host, cfg.Port), Path: "/" + cfg.Name}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	q := url.Values{}
	if cfg.Host == "localhost" || cfg.Host == "127.0.0.1" || cfg.Host == "" {
		q.Set("sslmode", "disable")
	} else {
		q.Set("sslmode", "require")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func NewPostgreSQLDB() (*sql.DB, error) {
	db, err := sql.Open("postgres", PostgresDSN(configuration.C.Database.Psql))
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
