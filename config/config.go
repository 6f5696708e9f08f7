// Package config loads and composes crudgate's single configuration
// aggregate. Layering follows the teacher's convention: built-in
// defaults (struct-tag defaults via creasty/defaults), overridden by
// an optional ini-flavored config file (go-viper/encoding/ini codec),
// overridden by environment variables (SECTION_FIELD, automatic env).
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-viper/encoding/ini"
	"github.com/spf13/viper"
)

// App is the process-wide configuration instance, populated exactly
// once by Init and thereafter threaded into every collaborator's
// constructor by reference. Nothing after startup mutates it.
var App = new(Config)

var (
	cv         *viper.Viper
	configFile string
	configName = "crudgate"
	configType = "ini"
)

func SetConfigFile(path string) { configFile = path }

type Config struct {
	AppInfo    AppInfo    `mapstructure:"app" ini:"app"`
	Server     Server     `mapstructure:"server" ini:"server"`
	Database   Database   `mapstructure:"database" ini:"database"`
	MySQL      MySQL      `mapstructure:"mysql" ini:"mysql"`
	Postgres   Postgres   `mapstructure:"postgres" ini:"postgres"`
	Auth       Auth       `mapstructure:"auth" ini:"auth"`
	Roles      Roles      `mapstructure:"roles" ini:"roles"`
	RateLimit  RateLimit  `mapstructure:"ratelimit" ini:"ratelimit"`
	Cache      Cache      `mapstructure:"cache" ini:"cache"`
	Logging    Logging    `mapstructure:"logging" ini:"logging"`
	Monitoring Monitoring `mapstructure:"monitoring" ini:"monitoring"`
}

func (c *Config) setDefault() error {
	return defaults.Set(c)
}

type AppInfo struct {
	Name string `mapstructure:"name" ini:"name" default:"crudgate"`
	Env  string `mapstructure:"env" ini:"env" default:"dev"`
}

type Server struct {
	Listen         string        `mapstructure:"listen" ini:"listen" default:":8080"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" ini:"request_timeout" default:"30s"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes" ini:"max_body_bytes" default:"10485760"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace" ini:"shutdown_grace" default:"30s"`
}

// DBType selects which dialect/connection backs the CrudEngine.
type DBType string

const (
	DBMySQL    DBType = "mysql"
	DBPostgres DBType = "postgres"
)

type Database struct {
	Type               DBType        `mapstructure:"type" ini:"type" default:"mysql"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns" ini:"max_idle_conns" default:"10"`
	MaxOpenConns       int           `mapstructure:"max_open_conns" ini:"max_open_conns" default:"100"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime" ini:"conn_max_lifetime" default:"1h"`
	ConnMaxIdleTime    time.Duration `mapstructure:"conn_max_idle_time" ini:"conn_max_idle_time" default:"10m"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold" ini:"slow_query_threshold" default:"200ms"`
}

type MySQL struct {
	Enable    bool   `mapstructure:"enable" ini:"enable" default:"true"`
	Host      string `mapstructure:"host" ini:"host" default:"127.0.0.1"`
	Port      int    `mapstructure:"port" ini:"port" default:"3306"`
	Username  string `mapstructure:"username" ini:"username" default:"root"`
	Password  string `mapstructure:"password" ini:"password"`
	Database  string `mapstructure:"database" ini:"database"`
	Charset   string `mapstructure:"charset" ini:"charset" default:"utf8mb4"`
	ParseTime bool   `mapstructure:"parse_time" ini:"parse_time" default:"true"`
}

type Postgres struct {
	Enable   bool   `mapstructure:"enable" ini:"enable"`
	Host     string `mapstructure:"host" ini:"host" default:"127.0.0.1"`
	Port     int    `mapstructure:"port" ini:"port" default:"5432"`
	Username string `mapstructure:"username" ini:"username" default:"postgres"`
	Password string `mapstructure:"password" ini:"password"`
	Database string `mapstructure:"database" ini:"database"`
	SSLMode  string `mapstructure:"sslmode" ini:"sslmode" default:"disable"`
	TimeZone string `mapstructure:"timezone" ini:"timezone" default:"UTC"`
}

type AuthMethod string

const (
	AuthMethodAPIKey AuthMethod = "apikey"
	AuthMethodBasic  AuthMethod = "basic"
	AuthMethodJWT    AuthMethod = "jwt"
)

type Auth struct {
	Enable          bool              `mapstructure:"enable" ini:"enable" default:"true"`
	Method          AuthMethod        `mapstructure:"method" ini:"method" default:"jwt"`
	DefaultRole     string            `mapstructure:"default_role" ini:"default_role" default:"admin"`
	APIKeys         []string          `mapstructure:"api_keys" ini:"api_keys"`
	APIKeyRole      string            `mapstructure:"api_key_role" ini:"api_key_role" default:"apikey"`
	BasicUsers      map[string]string `mapstructure:"basic_users" ini:"basic_users"`
	UserRoles       map[string]string `mapstructure:"user_roles" ini:"user_roles"`
	UseDatabaseAuth bool              `mapstructure:"use_database_auth" ini:"use_database_auth"`
	UsersTable      string            `mapstructure:"users_table" ini:"users_table" default:"users"`
	JWTSecret       string            `mapstructure:"jwt_secret" ini:"jwt_secret"`
	JWTExpiration   time.Duration     `mapstructure:"jwt_expiration" ini:"jwt_expiration" default:"24h"`
	JWTIssuer       string            `mapstructure:"jwt_issuer" ini:"jwt_issuer" default:"crudgate"`
	JWTAudience     string            `mapstructure:"jwt_audience" ini:"jwt_audience" default:"crudgate-clients"`
}

// Roles is role -> table ("*" for wildcard) -> allowed action set.
type Roles struct {
	Rules map[string]map[string][]string `mapstructure:"rules" ini:"rules"`
}

type RateLimitStoreKind string

const (
	RateLimitStoreMemory RateLimitStoreKind = "memory"
	RateLimitStoreFile   RateLimitStoreKind = "file"
	RateLimitStoreRedis  RateLimitStoreKind = "redis"
)

type RateLimit struct {
	Enable            bool               `mapstructure:"enable" ini:"enable" default:"true"`
	MaxRequests       int                `mapstructure:"max_requests" ini:"max_requests" default:"100"`
	WindowSeconds     int                `mapstructure:"window_seconds" ini:"window_seconds" default:"60"`
	Store             RateLimitStoreKind `mapstructure:"store" ini:"store" default:"memory"`
	StorageDir        string             `mapstructure:"storage_dir" ini:"storage_dir" default:"./data/ratelimit"`
	TrustForwardedFor bool               `mapstructure:"trust_forwarded_for" ini:"trust_forwarded_for"`
	RedisAddr         string             `mapstructure:"redis_addr" ini:"redis_addr" default:"127.0.0.1:6379"`
	RedisDB           int                `mapstructure:"redis_db" ini:"redis_db"`
}

type CacheDriver string

const (
	CacheDriverMemory    CacheDriver = "memory"
	CacheDriverBigcache  CacheDriver = "bigcache"
	CacheDriverFreecache CacheDriver = "freecache"
	CacheDriverRistretto CacheDriver = "ristretto"
	CacheDriverFastcache CacheDriver = "fastcache"
	CacheDriverCcache    CacheDriver = "ccache"
	CacheDriverRedis     CacheDriver = "redis"
)

type Cache struct {
	Enable        bool              `mapstructure:"enable" ini:"enable" default:"true"`
	Driver        CacheDriver       `mapstructure:"driver" ini:"driver" default:"memory"`
	TTL           time.Duration     `mapstructure:"ttl" ini:"ttl" default:"5m"`
	PerTable      map[string]string `mapstructure:"per_table" ini:"per_table"`
	ExcludeTables []string          `mapstructure:"exclude_tables" ini:"exclude_tables"`
	VaryBy        []string          `mapstructure:"vary_by" ini:"vary_by"`
	Path          string            `mapstructure:"path" ini:"path" default:"./data/cache"`
	RedisAddr     string            `mapstructure:"redis_addr" ini:"redis_addr" default:"127.0.0.1:6379"`
	RedisDB       int               `mapstructure:"redis_db" ini:"redis_db"`
}

type Logging struct {
	Enable          bool     `mapstructure:"enable" ini:"enable" default:"true"`
	LogDir          string   `mapstructure:"log_dir" ini:"log_dir" default:"./logs"`
	LogLevel        string   `mapstructure:"log_level" ini:"log_level" default:"info"`
	LogHeaders      bool     `mapstructure:"log_headers" ini:"log_headers"`
	LogBody         bool     `mapstructure:"log_body" ini:"log_body"`
	LogQueryParams  bool     `mapstructure:"log_query_params" ini:"log_query_params" default:"true"`
	LogResponseBody bool     `mapstructure:"log_response_body" ini:"log_response_body"`
	MaxBodyLength   int      `mapstructure:"max_body_length" ini:"max_body_length" default:"2048"`
	SensitiveKeys   []string `mapstructure:"sensitive_keys" ini:"sensitive_keys"`
	RotationSize    int64    `mapstructure:"rotation_size" ini:"rotation_size" default:"104857600"`
	MaxFiles        int      `mapstructure:"max_files" ini:"max_files" default:"14"`
}

type Monitoring struct {
	Enable        bool       `mapstructure:"enable" ini:"enable" default:"true"`
	Thresholds    Thresholds `mapstructure:"thresholds" ini:"thresholds"`
	AlertHandlers []string   `mapstructure:"alert_handlers" ini:"alert_handlers"`
	WebhookURL    string     `mapstructure:"webhook_url" ini:"webhook_url"`
}

type Thresholds struct {
	ErrorRate     float64       `mapstructure:"error_rate" ini:"error_rate" default:"0.05"`
	ResponseTime  time.Duration `mapstructure:"response_time" ini:"response_time" default:"1s"`
	AuthFailures  float64       `mapstructure:"auth_failures" ini:"auth_failures" default:"0.2"`
	RateLimitHits float64       `mapstructure:"rate_limit" ini:"rate_limit" default:"0.3"`
}

// Init loads defaults, then an optional config file, then environment
// variables (higher precedence wins), mirroring the teacher's
// default < file < env layering in config.Init.
func Init() (err error) {
	codecRegistry := viper.NewCodecRegistry()
	if err = codecRegistry.RegisterCodec("ini", ini.Codec{}); err != nil {
		return errors.Wrap(err, "failed to register ini codec")
	}
	cv = viper.NewWithOptions(viper.WithCodecRegistry(codecRegistry))
	cv.AutomaticEnv()
	cv.AllowEmptyEnv(true)
	cv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	App = new(Config)
	if err = App.setDefault(); err != nil {
		return errors.Wrap(err, "failed to set config defaults")
	}

	if len(configFile) > 0 {
		cv.SetConfigFile(configFile)
	} else {
		cv.SetConfigName(configName)
		cv.SetConfigType(configType)
		cv.AddConfigPath(".")
		cv.AddConfigPath("/etc/crudgate/")
	}

	if err = cv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "failed to read config file")
		}
		// No config file present: defaults + env only, same as the
		// teacher's behavior when no file is found in test mode.
	}
	if err = cv.Unmarshal(App); err != nil {
		return errors.Wrap(err, "failed to unmarshal config")
	}

	return nil
}

// Save writes a starter ini file holding only the [app] section's name
// and env from the active configuration; no other section is written.
// Under `go test` it only creates the directory and writes no file.
func Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	if flag.Lookup("test.v") != nil {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create config file")
	}
	defer f.Close()
	fmt.Fprintf(f, "; crudgate configuration\n[app]\nname=%s\nenv=%s\n", App.AppInfo.Name, App.AppInfo.Env)
	return nil
}
