package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Redis      RedisConfig      `json:"redis"`
	Security   SecurityConfig   `json:"security"`
	Funding    FundingConfig    `json:"funding"`
	Storage    StorageConfig    `json:"storage"`
	Email      EmailConfig      `json:"email"`
	Settlement SettlementConfig `json:"settlement"`
	Logging    LoggingConfig    `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	IdleTimeout    time.Duration `json:"idle_timeout"`
	AllowedOrigins []string      `json:"allowed_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	AutoMigrate    bool          `json:"auto_migrate"`
}

// RedisConfig holds the nonce store connection
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret         string        `json:"jwt_secret"`
	TokenTTL          time.Duration `json:"token_ttl"`
	NonceTTL          time.Duration `json:"nonce_ttl"`
	AdminAddresses    []string      `json:"admin_addresses"`
	PlatformSignerKey string        `json:"platform_signer_key"`
	FactoryAddress    string        `json:"factory_address"`
	ProjectInitHash   string        `json:"project_init_hash"`
	ENSParent         string        `json:"ens_parent"`
}

// FundingConfig holds project and pledge limits in token base units
type FundingConfig struct {
	MinGoal        int64 `json:"min_goal"`
	MaxGoal        int64 `json:"max_goal"`
	MinInvestment  int64 `json:"min_investment"`
	MaxMilestones  int   `json:"max_milestones"`
	MaxFundingDays int   `json:"max_funding_days"`
}

// StorageConfig covers private document storage and IPFS pinning
type StorageConfig struct {
	S3Bucket        string        `json:"s3_bucket"`
	S3Region        string        `json:"s3_region"`
	S3Endpoint      string        `json:"s3_endpoint"`
	AccessKeyID     string        `json:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key"`
	IPFSAPIURL      string        `json:"ipfs_api_url"`
	IPFSTimeout     time.Duration `json:"ipfs_timeout"`
	MaxDocumentSize int64         `json:"max_document_size"`
	MaxDocuments    int           `json:"max_documents"`
}

// EmailConfig
type EmailConfig struct {
	Enabled     bool   `json:"enabled"`
	FromAddress string `json:"from_address"`
}

// SettlementConfig controls the deadline sweep
type SettlementConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "farmlink",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    5 * time.Minute,
			AutoMigrate:    true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Security: SecurityConfig{
			TokenTTL:        7 * 24 * time.Hour,
			NonceTTL:        5 * time.Minute,
			FactoryAddress:  "0x0000000000000000000000000000000000000000",
			ProjectInitHash: "0x0000000000000000000000000000000000000000000000000000000000000000",
			ENSParent:       "farmlink.eth",
		},
		Funding: FundingConfig{
			MinGoal:        500,
			MaxGoal:        50000,
			MinInvestment:  25,
			MaxMilestones:  10,
			MaxFundingDays: 180,
		},
		Storage: StorageConfig{
			S3Region:        "us-east-1",
			IPFSAPIURL:      "http://localhost:5001",
			IPFSTimeout:     30 * time.Second,
			MaxDocumentSize: 10 << 20,
			MaxDocuments:    5,
		},
		Settlement: SettlementConfig{
			Enabled:  true,
			Schedule: "@every 1m",
		},
		Logging: LoggingConfig{
			Level: "development",
		},
	}
}

// LoadConfig loads configuration from .env, the config file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := defaults()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks settings the server cannot start without
func (c *Config) Validate() error {
	if c.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret is required")
	}
	if len(c.Security.JWTSecret) < 16 {
		return errors.New("security.jwt_secret must be at least 16 characters")
	}
	if c.Funding.MinGoal <= 0 || c.Funding.MaxGoal < c.Funding.MinGoal {
		return fmt.Errorf("invalid funding goal range %d..%d", c.Funding.MinGoal, c.Funding.MaxGoal)
	}
	if c.Funding.MinInvestment <= 0 {
		return errors.New("funding.min_investment must be positive")
	}
	if c.Funding.MaxMilestones < 1 {
		return errors.New("funding.max_milestones must be at least 1")
	}
	return nil
}

// IsAdmin reports whether address is a configured admin wallet
func (c *SecurityConfig) IsAdmin(address string) bool {
	for _, a := range c.AdminAddresses {
		if strings.EqualFold(strings.TrimSpace(a), address) {
			return true
		}
	}
	return false
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.Server.AllowedOrigins = splitList(origins)
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DATABASE_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		config.Database.SSLMode = sslMode
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		config.Redis.Password = pass
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if admins := os.Getenv("ADMIN_ADDRESSES"); admins != "" {
		config.Security.AdminAddresses = splitList(admins)
	}
	if key := os.Getenv("PLATFORM_SIGNER_KEY"); key != "" {
		config.Security.PlatformSignerKey = key
	}
	if factory := os.Getenv("PROJECT_FACTORY_ADDRESS"); factory != "" {
		config.Security.FactoryAddress = factory
	}
	if initHash := os.Getenv("PROJECT_INIT_HASH"); initHash != "" {
		config.Security.ProjectInitHash = initHash
	}
	if ttl := os.Getenv("TOKEN_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Security.TokenTTL = d
		}
	}
	if ipfs := os.Getenv("IPFS_API_URL"); ipfs != "" {
		config.Storage.IPFSAPIURL = ipfs
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		config.Storage.S3Bucket = bucket
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.Storage.S3Region = region
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		config.Storage.S3Endpoint = endpoint
	}
	if keyID := os.Getenv("AWS_ACCESS_KEY_ID"); keyID != "" {
		config.Storage.AccessKeyID = keyID
	}
	if secret := os.Getenv("AWS_SECRET_ACCESS_KEY"); secret != "" {
		config.Storage.SecretAccessKey = secret
	}
	if from := os.Getenv("EMAIL_FROM"); from != "" {
		config.Email.FromAddress = from
		config.Email.Enabled = true
	}
	if schedule := os.Getenv("SETTLEMENT_SCHEDULE"); schedule != "" {
		config.Settlement.Schedule = schedule
	}
	if enabled := os.Getenv("SETTLEMENT_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Settlement.Enabled = b
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
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
