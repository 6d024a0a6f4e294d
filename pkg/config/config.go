package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "NEOMART"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Etcd     EtcdConfig     `mapstructure:"etcd"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Remote   RemoteConfig   `mapstructure:"remote"`
}

// ServerConfig is the gRPC catalog endpoint, also the address registered in etcd.
type ServerConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type EtcdConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// GatewayConfig is the HTTP listener. AllowedOrigins enables CORS for the
// listed browser origins; empty leaves CORS off.
type GatewayConfig struct {
	Port           int      `mapstructure:"port"`
	Host           string   `mapstructure:"host"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// StoreConfig selects the key-value backend holding application state.
// Backend is one of "memory", "redis" or "mysql".
type StoreConfig struct {
	Backend   string `mapstructure:"backend"`
	Namespace string `mapstructure:"namespace"`
}

// AdminConfig holds the single admin account. PasswordHash is a bcrypt
// hash; Password is only read when no hash is set and is hashed at startup.
type AdminConfig struct {
	LoginID      string `mapstructure:"login_id"`
	PasswordHash string `mapstructure:"password_hash"`
	Password     string `mapstructure:"password"`
}

// CheckoutConfig holds the simulated processing delay per payment method.
type CheckoutConfig struct {
	UPIDelay  time.Duration `mapstructure:"upi_delay"`
	CardDelay time.Duration `mapstructure:"card_delay"`
	CashDelay time.Duration `mapstructure:"cash_delay"`
}

// RemoteConfig points at the hosted product table. An empty URL disables it.
type RemoteConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Table   string        `mapstructure:"table"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "neomart-catalog")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 50061)
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("etcd.enabled", false)
	v.SetDefault("etcd.endpoints", []string{"127.0.0.1:2379"})
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/neomart/services/")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("mysql.host", "127.0.0.1")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.username", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "neomart")
	v.SetDefault("mysql.max_idle_conns", 5)
	v.SetDefault("mysql.max_open_conns", 20)
	v.SetDefault("mongodb.enabled", false)
	v.SetDefault("mongodb.uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("mongodb.database", "neomart")
	v.SetDefault("mongodb.collection", "audit_logs")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
	v.SetDefault("admin.login_id", "yashghuge")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.namespace", "neomart")
	v.SetDefault("checkout.upi_delay", 2*time.Second)
	v.SetDefault("checkout.card_delay", 3*time.Second)
	v.SetDefault("checkout.cash_delay", time.Duration(0))
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.table", "products")
	v.SetDefault("remote.timeout", 10*time.Second)
}

// Load reads the YAML file at configPath on top of the built-in defaults.
// An empty path skips the file. NEOMART_* environment variables override
// both, e.g. NEOMART_STORE_BACKEND=redis.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "redis", "mysql":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Namespace == "" {
		return fmt.Errorf("store namespace must not be empty")
	}
	return nil
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
