package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "AQUANEXUS"

// Config represents the application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Security   SecurityConfig
	Logging    LoggingConfig
	Catalog    CatalogConfig
	Ledger     LedgerConfig
	Settlement SettlementConfig
	Redis      RedisConfig
	AWS        AWSConfig
	Archive    ArchiveConfig
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConnections int
	MaxIdleConns   int
	MaxLifetime    time.Duration
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration
}

// LoggingConfig
type LoggingConfig struct {
	Level  string
	Format string
}

// CatalogConfig selects the project catalog backend
type CatalogConfig struct {
	Backend     string // memory, postgres or dynamodb
	SeedPath    string
	DynamoTable string
}

// LedgerConfig selects the settlement ledger backend
type LedgerConfig struct {
	Backend string // memory or postgres
}

// SettlementConfig tunes the settlement engine
type SettlementConfig struct {
	StoreTimeout         time.Duration
	LedgerRetries        int
	LedgerRetryDelay     time.Duration
	DefaultBuyer         string
	SerializeTransitions bool
	ReconcileCron        string
	CertificateCacheTTL  time.Duration
}

// RedisConfig enables the distributed settlement lock when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// AWSConfig is shared by the DynamoDB catalog and the S3 archive
type AWSConfig struct {
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// ArchiveConfig controls certificate uploads to S3
type ArchiveConfig struct {
	Enabled   bool
	Bucket    string
	Prefix    string
	QueueSize int
}

var (
	catalogBackends = map[string]bool{"memory": true, "postgres": true, "dynamodb": true}
	ledgerBackends  = map[string]bool{"memory": true, "postgres": true}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", os.Getenv("USER"))
	v.SetDefault("database.password", "")
	v.SetDefault("database.db_name", "aquanexus")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_lifetime", "5m")

	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.jwt_issuer", "aquanexus")
	v.SetDefault("security.token_ttl", "12h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("catalog.backend", "memory")
	v.SetDefault("catalog.seed_path", "seed/projects.json")
	v.SetDefault("catalog.dynamo_table", "aquanexus-projects")

	v.SetDefault("ledger.backend", "memory")

	v.SetDefault("settlement.store_timeout", "5s")
	v.SetDefault("settlement.ledger_retries", 3)
	v.SetDefault("settlement.ledger_retry_delay", "50ms")
	v.SetDefault("settlement.default_buyer", "Empresa Demo SA de CV")
	v.SetDefault("settlement.serialize_transitions", false)
	v.SetDefault("settlement.reconcile_cron", "@every 1m")
	v.SetDefault("settlement.certificate_cache_ttl", "10m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "10s")

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("aws.access_key", "")
	v.SetDefault("aws.secret_key", "")
	v.SetDefault("aws.use_path_style", false)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "certificates")
	v.SetDefault("archive.queue_size", 64)
}

// LoadConfig loads configuration from an optional JSON file, a .env file
// and AQUANEXUS_* environment variables, in increasing priority
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	config := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			AllowedOrigins:  stringSlice(v, "server.allowed_origins"),
		},
		Database: DatabaseConfig{
			Host:           v.GetString("database.host"),
			Port:           v.GetInt("database.port"),
			User:           v.GetString("database.user"),
			Password:       v.GetString("database.password"),
			DBName:         v.GetString("database.db_name"),
			SSLMode:        v.GetString("database.ssl_mode"),
			MaxConnections: v.GetInt("database.max_connections"),
			MaxIdleConns:   v.GetInt("database.max_idle_conns"),
			MaxLifetime:    v.GetDuration("database.max_lifetime"),
		},
		Security: SecurityConfig{
			JWTSecret: v.GetString("security.jwt_secret"),
			JWTIssuer: v.GetString("security.jwt_issuer"),
			TokenTTL:  v.GetDuration("security.token_ttl"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Catalog: CatalogConfig{
			Backend:     strings.ToLower(v.GetString("catalog.backend")),
			SeedPath:    v.GetString("catalog.seed_path"),
			DynamoTable: v.GetString("catalog.dynamo_table"),
		},
		Ledger: LedgerConfig{
			Backend: strings.ToLower(v.GetString("ledger.backend")),
		},
		Settlement: SettlementConfig{
			StoreTimeout:         v.GetDuration("settlement.store_timeout"),
			LedgerRetries:        v.GetInt("settlement.ledger_retries"),
			LedgerRetryDelay:     v.GetDuration("settlement.ledger_retry_delay"),
			DefaultBuyer:         v.GetString("settlement.default_buyer"),
			SerializeTransitions: v.GetBool("settlement.serialize_transitions"),
			ReconcileCron:        v.GetString("settlement.reconcile_cron"),
			CertificateCacheTTL:  v.GetDuration("settlement.certificate_cache_ttl"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			LockTTL:  v.GetDuration("redis.lock_ttl"),
		},
		AWS: AWSConfig{
			Region:       v.GetString("aws.region"),
			Endpoint:     v.GetString("aws.endpoint"),
			AccessKey:    v.GetString("aws.access_key"),
			SecretKey:    v.GetString("aws.secret_key"),
			UsePathStyle: v.GetBool("aws.use_path_style"),
		},
		Archive: ArchiveConfig{
			Enabled:   v.GetBool("archive.enabled"),
			Bucket:    v.GetString("archive.bucket"),
			Prefix:    v.GetString("archive.prefix"),
			QueueSize: v.GetInt("archive.queue_size"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// stringSlice accepts both JSON arrays and comma separated env values
func stringSlice(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if !catalogBackends[c.Catalog.Backend] {
		errs = append(errs, fmt.Errorf("catalog.backend %q is not one of memory, postgres, dynamodb", c.Catalog.Backend))
	}
	if !ledgerBackends[c.Ledger.Backend] {
		errs = append(errs, fmt.Errorf("ledger.backend %q is not one of memory, postgres", c.Ledger.Backend))
	}
	if c.Catalog.Backend == "dynamodb" && c.Catalog.DynamoTable == "" {
		errs = append(errs, errors.New("catalog.dynamo_table is required for the dynamodb backend"))
	}
	if c.Settlement.StoreTimeout <= 0 {
		errs = append(errs, errors.New("settlement.store_timeout must be positive"))
	}
	if c.Settlement.LedgerRetries < 0 {
		errs = append(errs, errors.New("settlement.ledger_retries must not be negative"))
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		errs = append(errs, errors.New("archive.bucket is required when archive is enabled"))
	}
	return errors.Join(errs...)
}

// UsesPostgres reports whether any backend needs the database
func (c *Config) UsesPostgres() bool {
	return c.Catalog.Backend == "postgres" || c.Ledger.Backend == "postgres"
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
