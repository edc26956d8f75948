package persistence

import (
	"fmt"
	"time"

	"brokerage-gateway/infrastructure/configuration"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MySQLDSN renders the go-sql-driver DSN for cfg.
func MySQLDSN(cfg configuration.Db) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
}

// NewRepositories opens the gorm connection backing the SQL audit trail.
func NewRepositories() (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(MySQLDSN(configuration.C.Database.MySql)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}
