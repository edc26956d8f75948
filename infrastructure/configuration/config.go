package configuration

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"brokerage-gateway/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App         `json:"app"`
	Database    Database    `json:"database"`
	RedisClient RedisClient `json:"redisClient"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	Brokerage   Brokerage   `json:"brokerage"`
	Vault       Vault       `json:"vault"`
	Audit       Audit       `json:"audit"`
}

type App struct {
	Port           int      `json:"port"`
	SecretKey      string   `json:"secretKey"`
	TLSEnabled     bool     `json:"tlsEnabled"`
	TLSCertFile    string   `json:"tlsCertFile"`
	TLSKeyFile     string   `json:"tlsKeyFile"`
	AllowedOrigins []string `json:"allowedOrigins"`
}

type Database struct {
	// Vendor selects the access-token store: "psql" (default) or "mssql".
	Vendor string `json:"vendor"`
	Psql   Db     `json:"psql"`
	MySql  Db     `json:"mysql"`
	Mongo  Db     `json:"mongo"`
	Mssql  Db     `json:"mssql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisClient struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Password     string `json:"password"`
	DatabaseName string `json:"databaseName"`
	Username     string `json:"username"`
}

type Pubsub struct {
	ProjectID  string `json:"projectID"`
	AuditTopic string `json:"auditTopic"`
}

type ServiceBus struct {
	Namespace  string `json:"namespace"`
	AuditQueue string `json:"auditQueue"`
}

// Brokerage configures the OAuth 1.0a provider and the dispatch retry policy.
type Brokerage struct {
	ConsumerKey      string        `json:"consumerKey"`
	ConsumerSecret   string        `json:"consumerSecret"`
	BaseURL          string        `json:"baseURL"`
	AuthorizeURL     string        `json:"authorizeURL"`
	RequestTokenPath string        `json:"requestTokenPath"`
	AccessTokenPath  string        `json:"accessTokenPath"`
	RenewTokenPath   string        `json:"renewTokenPath"`
	RevokeTokenPath  string        `json:"revokeTokenPath"`
	Callback         string        `json:"callback"`
	RequestTimeout   time.Duration `json:"requestTimeout"`
	MaxRetries       int           `json:"maxRetries"`
	BackoffBase      time.Duration `json:"backoffBase"`
	BackoffFactor    int           `json:"backoffFactor"`
	RequestTokenTTL  time.Duration `json:"requestTokenTTL"`
}

// URL resolves an endpoint path against BaseURL. Absolute URLs pass through.
func (b Brokerage) URL(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return strings.TrimRight(b.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

type Vault struct {
	// Key is the base64 encoding of a 32 byte AES key.
	Key string `json:"key"`
}

type Audit struct {
	// Sinks lists the audit destinations: log, mysql, mongo, pubsub, servicebus.
	Sinks           []string `json:"sinks"`
	MongoCollection string   `json:"mongoCollection"`
	// QueueSize bounds the records waiting for the background audit writer.
	QueueSize int `json:"queueSize"`
}

var C Config

func init() {
	Reload()
}

// Reload reads the config file and environment again, for use after env
// files have been loaded into the process environment.
func Reload() {
	C = Config{}
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	initBrokerage(&C)
	initAudit(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func setFromEnv(target *string, keys ...string) {
	if *target != "" {
		return
	}
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			*target = v
			return
		}
	}
}

func initDatabase(C *Config) {
	setFromEnv(&C.Database.Vendor, "DB_VENDOR")
	if C.Database.Vendor == "" {
		C.Database.Vendor = "psql"
	}

	setFromEnv(&C.Database.Psql.Name, "DB_NAME")
	setFromEnv(&C.Database.Psql.Host, "DB_HOST")
	setFromEnv(&C.Database.Psql.User, "DB_USER")
	setFromEnv(&C.Database.Psql.Password, "DB_PASSWORD")
	setFromEnv(&C.Database.Psql.Port, "DB_PORT")

	setFromEnv(&C.Database.Mssql.Name, "MSSQL_DB_NAME")
	setFromEnv(&C.Database.Mssql.Host, "MSSQL_HOST")
	setFromEnv(&C.Database.Mssql.User, "MSSQL_USER")
	setFromEnv(&C.Database.Mssql.Password, "MSSQL_PASSWORD")
	setFromEnv(&C.Database.Mssql.Port, "MSSQL_PORT")
	if C.Database.Mssql.Host == "" {
		C.Database.Mssql.Host = "localhost"
	}
	if C.Database.Mssql.Port == "" {
		C.Database.Mssql.Port = "1433"
	}

	setFromEnv(&C.Database.MySql.Name, "MYSQL_DB_NAME")
	setFromEnv(&C.Database.MySql.Host, "MYSQL_HOST")
	setFromEnv(&C.Database.MySql.User, "MYSQL_USER")
	setFromEnv(&C.Database.MySql.Password, "MYSQL_PASSWORD")
	setFromEnv(&C.Database.MySql.Port, "MYSQL_PORT")

	setFromEnv(&C.Database.Mongo.Name, "MONGO_DB_NAME")
	setFromEnv(&C.Database.Mongo.Host, "MONGO_HOST")
	setFromEnv(&C.Database.Mongo.User, "MONGO_USER")
	setFromEnv(&C.Database.Mongo.Password, "MONGO_PASSWORD")
	setFromEnv(&C.Database.Mongo.Port, "MONGO_PORT")

	logger.GetLogger().WithFields(map[string]interface{}{
		"vendor":    C.Database.Vendor,
		"psqlHost":  C.Database.Psql.Host,
		"mssqlHost": C.Database.Mssql.Host,
	}).Info("Database configuration")
}

func initApp(C *Config) {
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// APP_PORT -> PORT -> config -> 10001
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10001
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch v {
		case "1", "true", "TRUE", "True":
			C.App.TLSEnabled = true
		case "0", "false", "FALSE", "False":
			C.App.TLSEnabled = false
		}
	}
	setFromEnv(&C.App.TLSCertFile, "TLS_CERT_FILE")
	setFromEnv(&C.App.TLSKeyFile, "TLS_KEY_FILE")
	if len(C.App.AllowedOrigins) == 0 {
		C.App.AllowedOrigins = []string{"http://localhost:4200"}
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
}

func initBrokerage(C *Config) {
	b := &C.Brokerage
	if v := os.Getenv("BROKERAGE_CONSUMER_KEY"); v != "" {
		b.ConsumerKey = v
	}
	if v := os.Getenv("BROKERAGE_CONSUMER_SECRET"); v != "" {
		b.ConsumerSecret = v
	}
	if v := os.Getenv("BROKERAGE_BASE_URL"); v != "" {
		b.BaseURL = v
	}
	if v := os.Getenv("VAULT_KEY"); v != "" {
		C.Vault.Key = v
	}

	if b.AuthorizeURL == "" {
		b.AuthorizeURL = "https://us.etrade.com/e/t/etws/authorize"
	}
	if b.RequestTokenPath == "" {
		b.RequestTokenPath = "/oauth/request_token"
	}
	if b.AccessTokenPath == "" {
		b.AccessTokenPath = "/oauth/access_token"
	}
	if b.RenewTokenPath == "" {
		b.RenewTokenPath = "/oauth/renew_access_token"
	}
	if b.RevokeTokenPath == "" {
		b.RevokeTokenPath = "/oauth/revoke_access_token"
	}
	if b.Callback == "" {
		b.Callback = "oob"
	}
	if b.RequestTimeout <= 0 {
		b.RequestTimeout = 30 * time.Second
	}
	if !viper.IsSet("brokerage.maxRetries") && b.MaxRetries == 0 {
		b.MaxRetries = 3
	}
	if b.BackoffBase <= 0 {
		b.BackoffBase = 5 * time.Second
	}
	if b.BackoffFactor <= 0 {
		b.BackoffFactor = 2
	}
	if b.RequestTokenTTL <= 0 {
		b.RequestTokenTTL = 5 * time.Minute
	}
}

func initAudit(C *Config) {
	if v := os.Getenv("AUDIT_SINKS"); v != "" {
		C.Audit.Sinks = strings.Split(v, ",")
	}
	if len(C.Audit.Sinks) == 0 {
		C.Audit.Sinks = []string{"log"}
	}
	for i, s := range C.Audit.Sinks {
		C.Audit.Sinks[i] = strings.ToLower(strings.TrimSpace(s))
	}
	setFromEnv(&C.Pubsub.ProjectID, "PUBSUB_PROJECT_ID")
	setFromEnv(&C.ServiceBus.Namespace, "SERVICEBUS_NAMESPACE")
	if C.Pubsub.AuditTopic == "" {
		C.Pubsub.AuditTopic = "brokerage-audit"
	}
	if C.ServiceBus.AuditQueue == "" {
		C.ServiceBus.AuditQueue = "brokerage-audit"
	}
	if C.Audit.MongoCollection == "" {
		C.Audit.MongoCollection = "brokerage_audit"
	}
	if C.Audit.QueueSize <= 0 {
		C.Audit.QueueSize = 1024
	}
}

// Validate reports settings the gateway cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Brokerage.ConsumerKey == "" {
		errs = append(errs, errors.New("brokerage.consumerKey is required"))
	}
	if c.Brokerage.ConsumerSecret == "" {
		errs = append(errs, errors.New("brokerage.consumerSecret is required"))
	}
	if c.Brokerage.BaseURL == "" {
		errs = append(errs, errors.New("brokerage.baseURL is required"))
	} else if u, err := url.Parse(c.Brokerage.BaseURL); err != nil || !u.IsAbs() {
		errs = append(errs, fmt.Errorf("brokerage.baseURL %q is not an absolute URL", c.Brokerage.BaseURL))
	}
	if c.Vault.Key == "" {
		errs = append(errs, errors.New("vault.key is required"))
	}
	if c.Brokerage.MaxRetries < 0 {
		errs = append(errs, errors.New("brokerage.maxRetries must not be negative"))
	}
	return errors.Join(errs...)
}
