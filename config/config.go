package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coingecko_etl/exception"
	"coingecko_etl/models"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Warehouse drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// WarehouseConfig locates the relational warehouse
type WarehouseConfig struct {
	Driver   string
	Host     string
	Port     int
	DBName   string
	User     string
	Password string
	SSLMode  string
	DSN      string // sqlite file path, or a full postgres connection string
}

// MailConfig holds the SMTP submission credentials and the single recipient
type MailConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Destination string
	Timeout     time.Duration
}

// CoinGeckoConfig configures the market data provider
type CoinGeckoConfig struct {
	BaseURL  string
	APIKey   string
	Currency string
	PerPage  int
	Timeout  time.Duration
}

// ScheduleConfig configures the recurring job
type ScheduleConfig struct {
	Interval   time.Duration
	RetryDelay time.Duration
}

// Config is built once at startup and passed to every component
type Config struct {
	Port        string
	Environment string
	Warehouse   WarehouseConfig
	Mail        MailConfig
	CoinGecko   CoinGeckoConfig
	Thresholds  models.Thresholds
	Schedule    ScheduleConfig
	MongoURI    string
	RunHistory  int
}

// DefaultConfigPath returns the credentials bundle location. ETL_CONFIG wins,
// otherwise the file sits under $AIRFLOW_HOME/dags/keys like the DAG layout.
func DefaultConfigPath() string {
	if path := os.Getenv("ETL_CONFIG"); path != "" {
		return path
	}
	return filepath.Join(os.Getenv("AIRFLOW_HOME"), "dags", "keys", "config.json")
}

// LoadConfig reads the JSON credentials bundle at path, then lets environment
// variables of the same name override it. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: read %s: %w", exception.ErrConfig, path, err)
			}
			log.Printf("Config file %s not found, using environment variables", path)
		}
	}

	price, err := decimal.NewFromString(strings.TrimSpace(v.GetString("PRICE_THRESHOLD")))
	if err != nil {
		return nil, fmt.Errorf("%w: PRICE_THRESHOLD: %w", exception.ErrConfig, err)
	}

	cfg := &Config{
		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		Warehouse: WarehouseConfig{
			Driver:   strings.ToLower(v.GetString("WAREHOUSE_DRIVER")),
			Host:     v.GetString("REDSHIFT_HOST"),
			Port:     v.GetInt("REDSHIFT_PORT"),
			DBName:   v.GetString("REDSHIFT_DBNAME"),
			User:     v.GetString("REDSHIFT_USER"),
			Password: v.GetString("REDSHIFT_PASSWORD"),
			SSLMode:  v.GetString("WAREHOUSE_SSLMODE"),
			DSN:      v.GetString("WAREHOUSE_DSN"),
		},
		Mail: MailConfig{
			Host:        v.GetString("EMAIL_HOST"),
			Port:        v.GetInt("EMAIL_PORT"),
			User:        v.GetString("EMAIL_USER"),
			Password:    v.GetString("EMAIL_PASSWORD"),
			Destination: v.GetString("EMAIL_DESTINATION"),
			Timeout:     v.GetDuration("EMAIL_TIMEOUT"),
		},
		CoinGecko: CoinGeckoConfig{
			BaseURL:  strings.TrimRight(v.GetString("COINGECKO_BASE_URL"), "/"),
			APIKey:   v.GetString("COINGECKO_API_KEY"),
			Currency: v.GetString("COINGECKO_CURRENCY"),
			PerPage:  v.GetInt("COINGECKO_PER_PAGE"),
			Timeout:  v.GetDuration("HTTP_TIMEOUT"),
		},
		Thresholds: models.Thresholds{
			Price:     price,
			MarketCap: v.GetInt64("MARKET_CAP_THRESHOLD"),
		},
		Schedule: ScheduleConfig{
			Interval:   v.GetDuration("SCHEDULE_INTERVAL"),
			RetryDelay: v.GetDuration("RETRY_DELAY"),
		},
		MongoURI:   v.GetString("MONGODB_URI"),
		RunHistory: v.GetInt("RUN_HISTORY"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")

	v.SetDefault("WAREHOUSE_DRIVER", DriverPostgres)
	v.SetDefault("REDSHIFT_PORT", 5439)
	v.SetDefault("WAREHOUSE_SSLMODE", "require")

	v.SetDefault("EMAIL_PORT", 587)
	v.SetDefault("EMAIL_TIMEOUT", "30s")

	v.SetDefault("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3")
	v.SetDefault("COINGECKO_CURRENCY", "usd")
	v.SetDefault("COINGECKO_PER_PAGE", 5)
	v.SetDefault("HTTP_TIMEOUT", "30s")

	v.SetDefault("PRICE_THRESHOLD", "50000")
	v.SetDefault("MARKET_CAP_THRESHOLD", 1000000000)

	v.SetDefault("SCHEDULE_INTERVAL", "1h")
	v.SetDefault("RETRY_DELAY", "5m")
	v.SetDefault("RUN_HISTORY", 50)
}

// Validate checks that every credential the pipeline needs is present
func (c *Config) Validate() error {
	var problems []string

	switch c.Warehouse.Driver {
	case DriverPostgres:
		if c.Warehouse.DSN == "" {
			if c.Warehouse.Host == "" {
				problems = append(problems, "REDSHIFT_HOST is required")
			}
			if c.Warehouse.DBName == "" {
				problems = append(problems, "REDSHIFT_DBNAME is required")
			}
			if c.Warehouse.User == "" {
				problems = append(problems, "REDSHIFT_USER is required")
			}
		}
	case DriverSQLite:
		if c.Warehouse.DSN == "" {
			problems = append(problems, "WAREHOUSE_DSN is required for the sqlite driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported WAREHOUSE_DRIVER %q", c.Warehouse.Driver))
	}

	if c.Mail.Host == "" {
		problems = append(problems, "EMAIL_HOST is required")
	}
	if c.Mail.Port <= 0 {
		problems = append(problems, "EMAIL_PORT must be positive")
	}
	// SMTP login needs both halves of the credential
	if c.Mail.User == "" {
		problems = append(problems, "EMAIL_USER is required")
	}
	if c.Mail.Password == "" {
		problems = append(problems, "EMAIL_PASSWORD is required")
	}
	if c.Mail.Destination == "" {
		problems = append(problems, "EMAIL_DESTINATION is required")
	}

	if c.CoinGecko.BaseURL == "" {
		problems = append(problems, "COINGECKO_BASE_URL is required")
	}
	if c.CoinGecko.PerPage <= 0 {
		problems = append(problems, "COINGECKO_PER_PAGE must be positive")
	}

	if !c.Thresholds.Price.IsPositive() {
		problems = append(problems, "PRICE_THRESHOLD must be positive")
	}
	if c.Thresholds.MarketCap <= 0 {
		problems = append(problems, "MARKET_CAP_THRESHOLD must be positive")
	}

	if c.Schedule.Interval <= 0 {
		problems = append(problems, "SCHEDULE_INTERVAL must be positive")
	}
	if c.Schedule.RetryDelay < 0 {
		problems = append(problems, "RETRY_DELAY must not be negative")
	}

	if len(problems) != 0 {
		return fmt.Errorf("%w: %s", exception.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Dialector returns a fresh gorm dialector for the warehouse. Each call opens
// its own pool, so connections never outlive the step that asked for them.
func (w WarehouseConfig) Dialector() gorm.Dialector {
	if w.Driver == DriverSQLite {
		return sqlite.Open(w.DSN)
	}
	return postgres.New(postgres.Config{
		DSN: w.dsn(),
		// Redshift only partially supports the extended query protocol
		PreferSimpleProtocol: true,
	})
}

// Describe returns a loggable summary of the warehouse target
func (w WarehouseConfig) Describe() string {
	if w.Driver == DriverSQLite {
		return fmt.Sprintf("sqlite %s", w.DSN)
	}
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s", maskHost(w.Host), w.Port, w.User, w.DBName)
}

func (w WarehouseConfig) dsn() string {
	if w.DSN != "" {
		return w.DSN
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", w.Host, w.Port),
		Path:   "/" + w.DBName,
	}
	if w.Password != "" {
		u.User = url.UserPassword(w.User, w.Password)
	} else {
		u.User = url.User(w.User)
	}

	sslMode := w.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	query := url.Values{}
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}
