package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const defaultConfigPath = "src/internal/config/cfg.yml"

type Configuration struct {
	Logs     LogsSettings    `mapstructure:"logs"`
	App      Application     `mapstructure:"app"`
	Server   ServerSettings  `mapstructure:"server"`
	Api      ApiSettings     `mapstructure:"api"`
	Session  SessionSettings `mapstructure:"session"`
	Storage  StorageSettings `mapstructure:"storage"`
	Database Database        `mapstructure:"database"`
	Redis    Redis           `mapstructure:"redis"`
	Queue    QueueConfig     `mapstructure:"queue"`
}

type LogsSettings struct {
	Level            string `mapstructure:"level"`
	Path             string `mapstructure:"log-path"`
	EnableJSONOutput bool   `mapstructure:"enable-json-output"`
}

type Application struct {
	Name    string `mapstructure:"name"`
	Timeout int    `mapstructure:"timeout"`
	Version string `mapstructure:"version"`
}

type ServerSettings struct {
	Port         string `mapstructure:"port"`
	Mode         string `mapstructure:"mode"`
	ReadTimeout  int    `mapstructure:"read-timeout"`
	WriteTimeout int    `mapstructure:"write-timeout"`
	IdleTimeout  int    `mapstructure:"idle-timeout"`
}

// ApiSettings points at the storefront REST backend.
type ApiSettings struct {
	Url       string `mapstructure:"url"`
	Timeout   int    `mapstructure:"timeout"`
	LoginPath string `mapstructure:"login-path"`
}

type SessionSettings struct {
	Profile          string `mapstructure:"profile"`
	DefaultExpiresIn int64  `mapstructure:"default-expires-in"`
	StorageTimeout   int    `mapstructure:"storage-timeout"`
}

// StorageSettings selects the durable key-value backend: redis, mongo, file or memory.
type StorageSettings struct {
	Driver    string `mapstructure:"driver"`
	KeyPrefix string `mapstructure:"key-prefix"`
	Directory string `mapstructure:"directory"`
}

type Database struct {
	Url               string `mapstructure:"url"`
	DbName            string `mapstructure:"dbname"`
	SessionCollection string `mapstructure:"session-collection"`
	Timeout           int    `mapstructure:"timeout"`
}

type Redis struct {
	Url      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	Db       int    `mapstructure:"db"`
}

type QueueConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

type RabbitMQConfig struct {
	Url          string `mapstructure:"url"`
	Exchange     string `mapstructure:"exchange"`
	ExchangeType string `mapstructure:"exchange-type"`
	RoutingKey   string `mapstructure:"routing-key"`
	Durable      bool   `mapstructure:"durable"`
	AutoDelete   bool   `mapstructure:"auto-delete"`
	Internal     bool   `mapstructure:"internal"`
	NoWait       bool   `mapstructure:"no-wait"`
}

// Load reads the yml config (CONFIG_PATH or the default location) and applies
// environment overrides. It panics when the file cannot be read.
func Load() *Configuration {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		logrus.Panicf("Error loading configuration: %v", err)
	}

	logrus.Info("Configuration loaded")
	return cfg
}

func LoadFrom(path string) (*Configuration, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

func read(path string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(cfg *Configuration) {
	if apiUrl := os.Getenv("API_BASE_URL"); apiUrl != "" {
		cfg.Api.Url = apiUrl
	}

	if driver := os.Getenv("STORAGE_DRIVER"); driver != "" {
		cfg.Storage.Driver = driver
	}

	if profile := os.Getenv("SESSION_PROFILE"); profile != "" {
		cfg.Session.Profile = profile
	}

	if mongoUri := os.Getenv("MONGODB_URL"); mongoUri != "" {
		cfg.Database.Url = mongoUri
	}

	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.Database.DbName = dbName
	}

	if redisUrl := os.Getenv("REDIS_URL"); redisUrl != "" {
		cfg.Redis.Url = redisUrl
	}

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			cfg.Redis.Db = db
		}
	}

	if rabbitmqUrl := os.Getenv("RABBITMQ_URL"); rabbitmqUrl != "" {
		cfg.Queue.RabbitMQ.Url = rabbitmqUrl
	}
}

func applyDefaults(cfg *Configuration) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "file"
	}
	if cfg.Session.Profile == "" {
		cfg.Session.Profile = "default"
	}
	if cfg.Session.DefaultExpiresIn <= 0 {
		cfg.Session.DefaultExpiresIn = 3600
	}
	if cfg.Api.LoginPath == "" {
		cfg.Api.LoginPath = "/login"
	}
	if cfg.Api.Timeout <= 0 {
		cfg.Api.Timeout = 10
	}
}
