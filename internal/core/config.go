package core

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"

	"github.com/coregx/entities/internal/audit"
	"github.com/coregx/entities/internal/naming"
)

// Config is the declarative form of a connection pool, loadable from YAML.
//
// Example:
//
//	driver: postgres
//	host: db.internal
//	database: billing
//	username: app
//	password: ${secret}
//	naming: snake_case
//	maxOpenConns: 20
//	connMaxLifetime: 5m
type Config struct {
	Driver string `yaml:"driver" validate:"required,oneof=postgres postgresql pgx sqlserver mssql mysql sqlite sqlite3"`
	// DSN is used verbatim when set; otherwise it is assembled from the
	// connection fields below.
	DSN      string            `yaml:"dsn"`
	Host     string            `yaml:"host" validate:"omitempty,hostname|ip"`
	Port     int               `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Database string            `yaml:"database" validate:"required_without=DSN"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Params   map[string]string `yaml:"params"`

	// Dialect overrides the dialect chosen by Driver.
	Dialect string `yaml:"dialect"`
	Naming  string `yaml:"naming" validate:"omitempty,oneof=verbatim none snake snake_case snakecase exact quoted"`

	MaxOpenConns    int           `yaml:"maxOpenConns" validate:"min=0"`
	MaxIdleConns    int           `yaml:"maxIdleConns" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" validate:"min=0"`
	HealthCheck     time.Duration `yaml:"healthCheck" validate:"min=0"`

	// SensitiveParams replaces the default masked parameter names.
	SensitiveParams []string `yaml:"sensitiveParams"`
	// Audit enables the audit trail on slog.Default.
	Audit string `yaml:"audit" validate:"omitempty,oneof=none writes all"`
}

// default TCP ports per driver family
var defaultPorts = map[string]int{
	"postgres":  5432,
	"sqlserver": 1433,
	"mysql":     3306,
}

// ParseConfig decodes YAML into a Config and validates it.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, WrapError(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapError(err, "read config")
	}
	return ParseConfig(data)
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return WrapError(err, "invalid config")
	}
	return nil
}

// family maps driver aliases to the DSN format they share.
func (c *Config) family() string {
	switch strings.ToLower(c.Driver) {
	case "postgres", "postgresql", "pgx":
		return "postgres"
	case "sqlserver", "mssql":
		return "sqlserver"
	case "mysql":
		return "mysql"
	default:
		return "sqlite"
	}
}

func (c *Config) hostPort() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = defaultPorts[c.family()]
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// DataSourceName returns DSN, or assembles the driver-specific data source
// name from the connection fields.
func (c *Config) DataSourceName() string {
	if c.DSN != "" {
		return c.DSN
	}

	switch c.family() {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = c.Username
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = c.hostPort()
		mc.DBName = c.Database
		mc.ParseTime = true
		if len(c.Params) > 0 {
			mc.Params = make(map[string]string, len(c.Params))
			for k, v := range c.Params {
				mc.Params[k] = v
			}
		}
		return mc.FormatDSN()

	case "postgres":
		u := c.serverURL("postgres")
		u.Path = "/" + c.Database
		u.RawQuery = encodeParams(c.Params, nil)
		return u.String()

	case "sqlserver":
		u := c.serverURL("sqlserver")
		u.RawQuery = encodeParams(c.Params, map[string]string{"database": c.Database})
		return u.String()

	default:
		if len(c.Params) == 0 {
			return c.Database
		}
		return "file:" + c.Database + "?" + encodeParams(c.Params, nil)
	}
}

func (c *Config) serverURL(scheme string) *url.URL {
	u := &url.URL{Scheme: scheme, Host: c.hostPort()}
	switch {
	case c.Username != "" && c.Password != "":
		u.User = url.UserPassword(c.Username, c.Password)
	case c.Username != "":
		u.User = url.User(c.Username)
	}
	return u
}

// encodeParams renders params plus extra in key order. extra wins.
func encodeParams(params, extra map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	for k, v := range extra {
		values.Set(k, v)
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(values.Get(k)))
	}
	return sb.String()
}

// Options converts the pool settings into functional options.
func (c *Config) Options() ([]Option, error) {
	var opts []Option

	if c.Naming != "" {
		policy, err := naming.ParsePolicy(c.Naming)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithNaming(policy))
	}
	if c.Dialect != "" {
		opts = append(opts, WithDialect(c.Dialect))
	}
	if c.MaxOpenConns > 0 {
		opts = append(opts, WithMaxOpenConns(c.MaxOpenConns))
	}
	if c.MaxIdleConns > 0 {
		opts = append(opts, WithMaxIdleConns(c.MaxIdleConns))
	}
	if c.ConnMaxLifetime > 0 {
		opts = append(opts, WithConnMaxLifetime(c.ConnMaxLifetime))
	}
	if c.HealthCheck > 0 {
		opts = append(opts, WithHealthCheck(c.HealthCheck))
	}
	if len(c.SensitiveParams) > 0 {
		opts = append(opts, WithSensitiveParams(c.SensitiveParams...))
	}
	if c.Audit != "" {
		level, err := audit.ParseLevel(c.Audit)
		if err != nil {
			return nil, err
		}
		if level != audit.None {
			opts = append(opts, WithAuditor(audit.New(slog.Default(), level)))
		}
	}
	return opts, nil
}

// OpenConfig validates cfg and opens a pool from it. extra options are
// applied after the ones derived from cfg.
func OpenConfig(cfg *Config, extra ...Option) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Open(cfg.Driver, cfg.DataSourceName(), append(opts, extra...)...)
}
