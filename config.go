package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	ConfigEnvPrefix = "BCAP"
	MemoryQueue     = "memory"
	RedisQueueType  = "redis"
)

// Config defines the structure of the configuration file.
type Config struct {
	GitCommit          string          `yaml:"git_commit" envconfig:"BCAP_GIT_COMMIT"`
	GitTag             string          `yaml:"git_tag" envconfig:"BCAP_GIT_TAG"`
	BuildTime          string          `yaml:"build_time" envconfig:"BCAP_BUILD_TIME"`
	IsProduction       bool            `yaml:"is_production" envconfig:"BCAP_IS_PRODUCTION"`
	LogLevel           zapcore.Level   `yaml:"log_level" envconfig:"BCAP_LOG_LEVEL"`
	LogFolder          string          `yaml:"log_folder" envconfig:"BCAP_LOG_FOLDER"`
	LogMaxSize         int             `yaml:"log_max_size" envconfig:"BCAP_LOG_MAX_SIZE"`
	ProfilerEnable     bool            `yaml:"profiler_enable" envconfig:"BCAP_PROFILER_ENABLE"`
	OpsEndpointsEnable bool            `yaml:"ops_endpoints_enable" envconfig:"BCAP_OPS_ENDPOINTS_ENABLE"`
	Server             ServerConfig    `yaml:"server"`
	SQLite             SQLiteConfig    `yaml:"sqlite"`
	BoltDB             BoltDBConfig    `yaml:"boltdb"`
	Queue              QueueConfig     `yaml:"queue"`
	Redis              RedisConfig     `yaml:"redis"`
	RateLimit          RateLimitConfig `yaml:"ratelimit"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"BCAP_SERVER_HOST"`
	Port            string        `yaml:"port" envconfig:"BCAP_SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"BCAP_SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"BCAP_SERVER_WRITE_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"BCAP_SERVER_REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"BCAP_SERVER_SHUTDOWN_TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"BCAP_SERVER_MAX_BODY_BYTES"`
}

type SQLiteConfig struct {
	FilePath        string        `yaml:"filepath" envconfig:"BCAP_SQLITE_FILE_PATH"`
	BusyTimeout     time.Duration `yaml:"busy_timeout" envconfig:"BCAP_SQLITE_BUSY_TIMEOUT"`
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"BCAP_SQLITE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"BCAP_SQLITE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"BCAP_SQLITE_CONN_MAX_LIFETIME"`
}

type BoltDBConfig struct {
	FilePath   string        `yaml:"filepath" envconfig:"BCAP_BOLTDB_FILE_PATH"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"BCAP_BOLTDB_TIMEOUT"`
	BucketName string        `yaml:"bucket_name" envconfig:"BCAP_BOLTDB_BUCKET_NAME"`
}

type QueueConfig struct {
	Type       string `yaml:"type" envconfig:"BCAP_QUEUE_TYPE"`
	BufferSize int    `yaml:"buffer_size" envconfig:"BCAP_QUEUE_BUFFER_SIZE"`
}

type RedisConfig struct {
	Host          string        `yaml:"host" envconfig:"BCAP_REDIS_HOST"`
	Port          string        `yaml:"port" envconfig:"BCAP_REDIS_PORT"`
	DialTimeout   time.Duration `yaml:"dial_timeout" envconfig:"BCAP_REDIS_DIAL_TIMEOUT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"BCAP_REDIS_READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" envconfig:"BCAP_REDIS_WRITE_TIMEOUT"`
	PoolSize      int           `yaml:"pool_size" envconfig:"BCAP_REDIS_POOL_SIZE"`
	PoolTimeout   time.Duration `yaml:"pool_timeout" envconfig:"BCAP_REDIS_POOL_TIMEOUT"`
	Username      string        `yaml:"username" envconfig:"BCAP_REDIS_USERNAME"`
	Password      string        `yaml:"password" envconfig:"BCAP_REDIS_PASSWORD" json:"-"`
	DatabaseIndex int           `yaml:"db_index" envconfig:"BCAP_REDIS_DATABASE_INDEX"`
}

type RateLimitConfig struct {
	Enable          bool          `yaml:"enable" envconfig:"BCAP_RATELIMIT_ENABLE"`
	RequestsPerSec  float64       `yaml:"requests_per_sec" envconfig:"BCAP_RATELIMIT_REQUESTS_PER_SEC"`
	Burst           int           `yaml:"burst" envconfig:"BCAP_RATELIMIT_BURST"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" envconfig:"BCAP_RATELIMIT_CLEANUP_INTERVAL"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"BCAP_RATELIMIT_IDLE_TIMEOUT"`
}

// LoadConfigFile provides an instance of config structure for the all application.
func LoadConfigFile(configFile string) (*Config, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg := &Config{}
	if err = yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigEnvs reads the environments variables and overrides the App config.
func LoadConfigEnvs(prefix string, config *Config) error {
	return envconfig.Process(prefix, config)
}

// InitConfig setup defaults values for non provided parameters
// and configures build tags values to be used if provided.
func InitConfig(config *Config, gitCommit, gitTag, buildTime string) error {
	if len(gitCommit) != 0 {
		config.GitCommit = gitCommit
	}

	if len(gitTag) != 0 {
		config.GitTag = gitTag
	}

	if len(buildTime) != 0 {
		config.BuildTime = buildTime
	}

	if len(config.Server.Host) == 0 || len(config.Server.Port) == 0 {
		return errors.New("make sure to set valid server address and port in configuration file")
	}

	setDurationDefault(&config.Server.ReadTimeout, 10*time.Second)
	setDurationDefault(&config.Server.WriteTimeout, 15*time.Second)
	setDurationDefault(&config.Server.RequestTimeout, 10*time.Second)
	setDurationDefault(&config.Server.ShutdownTimeout, 30*time.Second)
	if config.Server.MaxBodyBytes <= 0 {
		config.Server.MaxBodyBytes = 1 << 20
	}

	if len(config.LogFolder) == 0 {
		config.LogFolder = "./logs"
	}
	if config.LogMaxSize <= 0 {
		config.LogMaxSize = 10
	}

	if len(config.SQLite.FilePath) == 0 {
		config.SQLite.FilePath = "./database/books.db"
	}
	setDurationDefault(&config.SQLite.BusyTimeout, 5*time.Second)
	if config.SQLite.MaxOpenConns <= 0 {
		config.SQLite.MaxOpenConns = 10
	}
	if config.SQLite.MaxIdleConns <= 0 {
		config.SQLite.MaxIdleConns = 5
	}

	if len(config.BoltDB.FilePath) == 0 {
		config.BoltDB.FilePath = "./database/journal.db"
	}
	if len(config.BoltDB.BucketName) == 0 {
		config.BoltDB.BucketName = "books.journal"
	}
	setDurationDefault(&config.BoltDB.Timeout, 5*time.Second)

	if len(config.Queue.Type) == 0 {
		config.Queue.Type = MemoryQueue
	}
	if config.Queue.BufferSize <= 0 {
		config.Queue.BufferSize = 1024
	}
	switch config.Queue.Type {
	case MemoryQueue:
	case RedisQueueType:
		if len(config.Redis.Host) == 0 || len(config.Redis.Port) == 0 {
			return errors.New("make sure to set valid redis address and port in configuration file")
		}
	default:
		return fmt.Errorf("unsupported queue type %q", config.Queue.Type)
	}

	if config.RateLimit.Enable {
		if config.RateLimit.RequestsPerSec <= 0 || config.RateLimit.Burst <= 0 {
			return errors.New("make sure to set positive rate limit requests per second and burst values")
		}
		setDurationDefault(&config.RateLimit.CleanupInterval, time.Minute)
		setDurationDefault(&config.RateLimit.IdleTimeout, 3*time.Minute)
	}

	return nil
}

func setDurationDefault(d *time.Duration, value time.Duration) {
	if *d <= 0 {
		*d = value
	}
}

// LoadAndInitConfigs loads in order the configs from various predefined sources
// then build the App configuration data. The env file is optional.
func LoadAndInitConfigs(configFile, envFile, gitCommit, gitTag, buildTime string) (*Config, error) {
	config, err := LoadConfigFile(configFile)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from file: %w", err)
	}

	if _, err = os.Stat(envFile); err == nil {
		if err = godotenv.Load(envFile); err != nil {
			return config, fmt.Errorf("failed to set environment configurations: %w", err)
		}
	}

	err = LoadConfigEnvs(ConfigEnvPrefix, config)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from environment: %w", err)
	}

	err = InitConfig(config, gitCommit, gitTag, buildTime)
	if err != nil {
		return config, fmt.Errorf("failed to initialize configurations: %w", err)
	}
	return config, nil
}
