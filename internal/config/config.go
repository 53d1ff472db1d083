package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultWhatsApp is the store number orders are sent to.
const DefaultWhatsApp = "+51964306693"

type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel string   `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Store    Store    `yaml:"store"`
	Payment  Payment  `yaml:"payment"`
	Storage  Storage  `yaml:"storage"`
	Outbound Outbound `yaml:"outbound"`
	Receipt  Receipt  `yaml:"receipt"`
	Workers  Workers  `yaml:"workers"`
}

type HTTP struct {
	Addr    string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"10s"`
}

type GRPC struct {
	Addr string `yaml:"addr" env:"GRPC_ADDR" env-default:":50051"`
}

type Store struct {
	Name       string `yaml:"name" env:"STORE_NAME" env-default:"ByteFood"`
	Currency   string `yaml:"currency" env:"STORE_CURRENCY" env-default:"S/"`
	WhatsApp   string `yaml:"whatsapp" env:"STORE_WHATSAPP" env-default:"+51964306693"`
	OpenHour   int    `yaml:"open_hour" env:"STORE_OPEN_HOUR" env-default:"9"`
	CloseHour  int    `yaml:"close_hour" env:"STORE_CLOSE_HOUR" env-default:"23"`
	TimeZone   string `yaml:"time_zone" env:"STORE_TZ" env-default:"America/Lima"`
	TimeLayout string `yaml:"time_layout" env:"STORE_TIME_LAYOUT" env-default:"2/1/2006, 15:04:05"`
	// EnforceHours rejects adds outside opening hours.
	EnforceHours bool `yaml:"enforce_hours" env:"STORE_ENFORCE_HOURS" env-default:"true"`
}

type Payment struct {
	CardDelay time.Duration `yaml:"card_delay" env:"PAYMENT_CARD_DELAY" env-default:"1200ms"`
	QRDelay   time.Duration `yaml:"qr_delay" env:"PAYMENT_QR_DELAY" env-default:"1000ms"`
}

type Storage struct {
	Driver    string        `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	Dir       string        `yaml:"dir" env:"STORAGE_DIR" env-default:"./data/carts"`
	MySQLDSN  string        `yaml:"mysql_dsn" env:"MYSQL_DSN"`
	RedisAddr string        `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	CartKey   string        `yaml:"cart_key" env:"CART_KEY" env-default:"menu_cart_v1"`
	CartTTL   time.Duration `yaml:"cart_ttl" env:"CART_TTL" env-default:"72h"`
}

type Outbound struct {
	Mode    string        `yaml:"mode" env:"OUTBOUND_MODE" env-default:"log"`
	Timeout time.Duration `yaml:"timeout" env:"OUTBOUND_TIMEOUT" env-default:"5s"`
}

type Receipt struct {
	Dir     string `yaml:"dir" env:"RECEIPT_DIR"`
	Blocked bool   `yaml:"blocked" env:"RECEIPT_BLOCKED" env-default:"false"`
}

type Workers struct {
	Count     int `yaml:"count" env:"WORKER_COUNT" env-default:"4"`
	QueueSize int `yaml:"queue_size" env:"WORKER_QUEUE_SIZE" env-default:"256"`
}

// Load reads .env if present, then the YAML file named by CONFIG_PATH, or only the
// environment when CONFIG_PATH is unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("error reading config: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.Store.OpenHour < 0 || c.Store.OpenHour > 23 || c.Store.CloseHour < 0 || c.Store.CloseHour > 24 {
		return fmt.Errorf("store hours out of range: %d-%d", c.Store.OpenHour, c.Store.CloseHour)
	}
	switch c.Storage.Driver {
	case "memory", "file", "redis", "mysql":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Outbound.Mode {
	case "log", "http":
	default:
		return fmt.Errorf("unknown outbound mode %q", c.Outbound.Mode)
	}
	if c.Workers.Count <= 0 || c.Workers.QueueSize <= 0 {
		return fmt.Errorf("workers and queue size must be positive")
	}
	return nil
}

// Location resolves the store time zone, falling back to the host zone.
func (s Store) Location() *time.Location {
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}
