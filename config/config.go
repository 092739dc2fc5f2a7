package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config files or the environment.
type AppConfig struct {
	AppPort            string
	BaseURL            string
	JWTSecret          string
	RateLimitPerMinute int
	AllowedOrigins     []string
	AdminUsernames     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database: mysql (default) or sqlite
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string
	// Redis resolution cache; an empty host disables it
	RedisHost       string
	RedisPort       int
	RedisDB         int
	RedisPassword   string
	CacheTTLMinutes int
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Alias allocation
	AliasMaxAttempts    int
	AliasBudgetSec      int
	AliasTTLDays        int
	AliasFallbackLabel  string
	AliasMaxLabelLength int
	// Naming oracle
	OracleProvider    string
	OracleEndpoint    string
	OracleModel       string
	OracleAPIKey      string
	OracleBearerToken string
	OracleStaticWord  string
	OracleTimeoutSec  int
	// Stale record sweeper
	SweepIntervalMinutes int
	RetentionDays        int
}

var (
	cfg        AppConfig
	loaded     bool
	configPath = filepath.Join("config", "config.json")
)

// SetPath selects the JSON file read by Load. It must be called before the first Load.
func SetPath(path string) {
	if path != "" {
		configPath = path
	}
}

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}
	c, err := LoadFrom(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// LoadFrom builds a configuration from path without touching the cached one.
// Precedence: JSON file -> defaults -> environment variable overrides.
func LoadFrom(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&c)
	if err := applyEnvOverrides(&c); err != nil {
		return c, err
	}
	if c.JWTSecret == "" {
		return c, fmt.Errorf("JWT_SECRET must be set in %s or the environment", path)
	}
	return c, nil
}

// AllocationBudget is the wall-clock bound of one alias allocation.
func (c AppConfig) AllocationBudget() time.Duration {
	return time.Duration(c.AliasBudgetSec) * time.Second
}

// RecordTTL is the lifetime given to new records.
func (c AppConfig) RecordTTL() time.Duration {
	return time.Duration(c.AliasTTLDays) * 24 * time.Hour
}

// OracleTimeout bounds a single naming oracle call.
func (c AppConfig) OracleTimeout() time.Duration {
	return time.Duration(c.OracleTimeoutSec) * time.Second
}

// CacheTTL caps how long a resolved record stays in Redis.
func (c AppConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// SweepInterval is the pause between two sweeper runs.
func (c AppConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// Retention is how long expired or deleted rows are kept before the sweeper removes them.
func (c AppConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// IsAdmin reports whether username is listed in AdminUsernames, ignoring case.
func (c AppConfig) IsAdmin(username string) bool {
	uname := strings.TrimSpace(username)
	if uname == "" {
		return false
	}
	for _, u := range c.AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), uname) {
			return true
		}
	}
	return false
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads grouped JSON sections into out if the file is present.
// Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case float64:
				return int(t)
			case int:
				return t
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		if arr, ok := m[key].([]any); ok {
			res := make([]string, 0, len(arr))
			for _, it := range arr {
				if s, ok := it.(string); ok {
					res = append(res, s)
				}
			}
			return res
		}
		return nil
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.BaseURL = getString(app, "BaseURL")
		out.JWTSecret = getString(app, "JWTSecret")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
		out.AdminUsernames = getStringSlice(app, "AdminUsernames")
	}

	if g, ok := raw["gin"].(map[string]any); ok {
		out.GinMode = getString(g, "Mode")
		out.GinPath = getString(g, "LogPath")
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DBDriver = getString(dbs, "Driver")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
		out.SQLitePath = getString(dbs, "SQLitePath")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = getInt(rds, "RedisPort")
		out.RedisDB = getInt(rds, "RedisDB")
		out.RedisPassword = getString(rds, "RedisPassword")
		out.CacheTTLMinutes = getInt(rds, "CacheTTLMinutes")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}

	if al, ok := raw["alias"].(map[string]any); ok {
		out.AliasMaxAttempts = getInt(al, "MaxAttempts")
		out.AliasBudgetSec = getInt(al, "BudgetSec")
		out.AliasTTLDays = getInt(al, "TTLDays")
		out.AliasFallbackLabel = getString(al, "FallbackLabel")
		out.AliasMaxLabelLength = getInt(al, "MaxLabelLength")
	}

	if orc, ok := raw["oracle"].(map[string]any); ok {
		out.OracleProvider = getString(orc, "Provider")
		out.OracleEndpoint = getString(orc, "Endpoint")
		out.OracleModel = getString(orc, "Model")
		out.OracleAPIKey = getString(orc, "APIKey")
		out.OracleBearerToken = getString(orc, "BearerToken")
		out.OracleStaticWord = getString(orc, "StaticWord")
		out.OracleTimeoutSec = getInt(orc, "TimeoutSec")
	}

	if sw, ok := raw["sweeper"].(map[string]any); ok {
		out.SweepIntervalMinutes = getInt(sw, "IntervalMinutes")
		out.RetentionDays = getInt(sw, "RetentionDays")
	}

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:" + c.AppPort
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "aishort"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "aishort.db"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.CacheTTLMinutes == 0 {
		c.CacheTTLMinutes = 60
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.AliasMaxAttempts == 0 {
		c.AliasMaxAttempts = 8
	}
	if c.AliasBudgetSec == 0 {
		c.AliasBudgetSec = 10
	}
	if c.AliasTTLDays == 0 {
		c.AliasTTLDays = 30
	}
	if c.AliasFallbackLabel == "" {
		c.AliasFallbackLabel = "link"
	}
	if c.AliasMaxLabelLength == 0 {
		c.AliasMaxLabelLength = 32
	}
	if c.OracleProvider == "" {
		c.OracleProvider = "gemini"
	}
	if c.OracleTimeoutSec == 0 {
		c.OracleTimeoutSec = 5
	}
	if c.SweepIntervalMinutes == 0 {
		c.SweepIntervalMinutes = 60
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"APP_PORT", &c.AppPort},
		{"BASE_URL", &c.BaseURL},
		{"JWT_SECRET", &c.JWTSecret},
		{"GIN_MODE", &c.GinMode},
		{"GIN_PATH", &c.GinPath},
		{"DB_DRIVER", &c.DBDriver},
		{"DATABASE_URI", &c.DatabaseURI},
		{"DB_HOST", &c.DBHost},
		{"DB_PORT", &c.DBPort},
		{"DB_USER", &c.DBUser},
		{"DB_PASSWORD", &c.DBPassword},
		{"DB_NAME", &c.DBName},
		{"SQLITE_PATH", &c.SQLitePath},
		{"REDIS_HOST", &c.RedisHost},
		{"REDIS_PASSWORD", &c.RedisPassword},
		{"LOG_LEVEL", &c.LogLevel},
		{"LOG_PATH", &c.LogPath},
		{"ALIAS_FALLBACK_LABEL", &c.AliasFallbackLabel},
		{"ORACLE_PROVIDER", &c.OracleProvider},
		{"ORACLE_ENDPOINT", &c.OracleEndpoint},
		{"ORACLE_MODEL", &c.OracleModel},
		{"ORACLE_API_KEY", &c.OracleAPIKey},
		{"ORACLE_BEARER_TOKEN", &c.OracleBearerToken},
		{"ORACLE_STATIC_WORD", &c.OracleStaticWord},
	}
	for _, s := range strs {
		if v := getEnv(s.key, ""); v != "" {
			*s.dst = v
		}
	}
	// the conventional Gemini variable is honoured as well
	if c.OracleAPIKey == "" {
		c.OracleAPIKey = getEnv("GEMINI_API_KEY", "")
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute},
		{"REDIS_PORT", &c.RedisPort},
		{"REDIS_DB", &c.RedisDB},
		{"CACHE_TTL_MINUTES", &c.CacheTTLMinutes},
		{"LOG_MAX_SIZE_MB", &c.LogMaxSizeMB},
		{"LOG_MAX_BACKUPS", &c.LogMaxBackups},
		{"LOG_MAX_AGE_DAYS", &c.LogMaxAgeDays},
		{"ALIAS_MAX_ATTEMPTS", &c.AliasMaxAttempts},
		{"ALIAS_BUDGET_SEC", &c.AliasBudgetSec},
		{"ALIAS_TTL_DAYS", &c.AliasTTLDays},
		{"ALIAS_MAX_LABEL_LENGTH", &c.AliasMaxLabelLength},
		{"ORACLE_TIMEOUT_SEC", &c.OracleTimeoutSec},
		{"SWEEP_INTERVAL_MINUTES", &c.SweepIntervalMinutes},
		{"RETENTION_DAYS", &c.RetentionDays},
	}
	for _, i := range ints {
		v := getEnv(i.key, "")
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer value %s for %s: %w", v, i.key, err)
		}
		*i.dst = n
	}

	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	c.AdminUsernames = readListEnv("ADMIN_USERNAMES", c.AdminUsernames)
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return nil
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
