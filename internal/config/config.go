package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// SierraDB is the read-only Sierra ILS database (sierra_view)
	SierraDB SierraDBConfig `json:"sierra_db"`

	// Database is the application database holding export history
	Database DatabaseConfig `json:"database"`

	// Solr index connections
	Solr SolrConfig `json:"solr"`

	// Redis queue / app-data configuration
	Redis RedisConfig `json:"redis"`

	// Kafka configuration for completion events
	Kafka KafkaConfig `json:"kafka"`

	// Mail configuration for admin notifications
	Mail MailConfig `json:"mail"`

	// Exporter tuning
	Exporter ExporterConfig `json:"exporter"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics"`

	// TimeZone is the local zone used to interpret date-range filters
	TimeZone string `json:"time_zone"`

	// LogFileDir is where the export job log file lives
	LogFileDir string `json:"log_file_dir"`

	// MediaRoot is where file-producing exports would write downloads.
	// Reserved: no current export type emits files.
	MediaRoot string `json:"media_root"`

	// CORSOriginRegexWhitelist holds origin patterns allowed to call the API
	CORSOriginRegexWhitelist []string `json:"cors_origin_regex_whitelist"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port int `json:"port"`

	// Host is the server bind address
	Host string `json:"host"`

	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`

	// SiteURLRoot prefixes every route (deployments behind a path proxy)
	SiteURLRoot string `json:"site_url_root"`

	// AdminURLPath is the path prefix used when building the admin link
	// embedded in notification messages
	AdminURLPath string `json:"admin_url_path"`
}

// SierraDBConfig contains connection settings for the Sierra database.
// User, password, and host have no defaults; the app refuses to start
// without them.
type SierraDBConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode"`
}

// ConnectionString returns a PostgreSQL connection string
func (s *SierraDBConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		s.Host, s.Port, s.Username, s.Password, s.Name, s.SSLMode)
}

// DatabaseConfig contains application database connection settings
type DatabaseConfig struct {
	// Type of database (sqlite, postgres)
	Type string `json:"type"`

	// Path to SQLite database file
	Path string `json:"path"`

	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode"`

	MaxOpenConnections    int           `json:"max_open_connections"`
	MaxIdleConnections    int           `json:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `json:"connection_max_lifetime"`
}

// ConnectionString returns a PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.Username, d.Password, d.Name, d.SSLMode)
}

// SolrConfig contains per-core Solr URLs
type SolrConfig struct {
	// Port feeds the default core URLs when explicit URLs are not set
	Port int `json:"port"`

	BibdataURL  string `json:"bibdata_url"`
	HaystackURL string `json:"haystack_url"`
	MarcURL     string `json:"marc_url"`

	Timeout time.Duration `json:"timeout"`
}

// CoreURLs returns every configured core URL, deduplicated. Used by
// index optimization, which must hit each distinct Solr endpoint once.
func (s *SolrConfig) CoreURLs() []string {
	seen := map[string]bool{}
	var urls []string
	for _, u := range []string{s.BibdataURL, s.HaystackURL, s.MarcURL} {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// RedisConfig contains Redis connection settings for the dispatch queue
// and app-data store
type RedisConfig struct {
	Enabled bool `json:"enabled"`

	Host string `json:"host"`
	Port int    `json:"port"`

	// QueueDatabase backs the export dispatch queue
	QueueDatabase int `json:"queue_database"`

	// AppdataDatabase backs miscellaneous application data
	AppdataDatabase int `json:"appdata_database"`

	Password  string        `json:"password"`
	KeyPrefix string        `json:"key_prefix"`
	LockTTL   time.Duration `json:"lock_ttl"`
}

// Address returns the host:port address for the Redis server
func (r *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig contains Kafka connection settings
type KafkaConfig struct {
	Enabled  bool          `json:"enabled"`
	Brokers  []string      `json:"brokers"`
	Topic    string        `json:"topic"`
	ClientID string        `json:"client_id"`
	Timeout  time.Duration `json:"timeout"`
}

// MailConfig contains SMTP settings and the admin recipient list
type MailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`

	// Admins receive error/warning notification mail. Parsed from a
	// comma-separated list of Name:email pairs.
	Admins []Admin `json:"admins"`

	EmailOnError   bool `json:"email_on_error"`
	EmailOnWarning bool `json:"email_on_warning"`
}

// Admin is one notification recipient
type Admin struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Addr returns the host:port address of the SMTP server
func (m *MailConfig) Addr() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// ExporterConfig contains export pipeline tuning
type ExporterConfig struct {
	// AutomatedUsername is recorded on instances created by the
	// scheduler rather than a staff user
	AutomatedUsername string `json:"automated_username"`

	// MaxRecChunkOverrides / MaxDelChunkOverrides override per-type
	// chunk sizes, parsed from Type:size comma lists
	MaxRecChunkOverrides map[string]int `json:"max_rec_chunk_overrides"`
	MaxDelChunkOverrides map[string]int `json:"max_del_chunk_overrides"`

	// MaxWorkers bounds the chunk worker pool for parallel exporters
	MaxWorkers int `json:"max_workers"`

	// Schedules are the automated export runs, parsed from a
	// semicolon list of type:filter:cronspec entries
	Schedules []ScheduleEntry `json:"schedules"`
}

// ScheduleEntry is one automated export: which type, which filter, and
// a five-field cron expression saying when.
type ScheduleEntry struct {
	ExportType string `json:"export_type"`
	Filter     string `json:"export_filter"`
	CronSpec   string `json:"cron_spec"`
}

// MetricsConfig contains metrics and monitoring settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{}

	config.Server = loadServerConfig()
	config.SierraDB = loadSierraDBConfig()
	config.Database = loadDatabaseConfig()
	config.Solr = loadSolrConfig()
	config.Redis = loadRedisConfig()
	config.Kafka = loadKafkaConfig()
	config.Mail = loadMailConfig()
	config.Exporter = loadExporterConfig()
	config.Metrics = loadMetricsConfig()

	config.TimeZone = getEnv("TIME_ZONE", "America/Chicago")
	config.LogFileDir = getEnv("LOG_FILE_DIR", "./log")
	config.MediaRoot = getEnv("MEDIA_ROOT", "./media")
	config.CORSOriginRegexWhitelist = getEnvAsStringSlice("CORS_ORIGIN_REGEX_WHITELIST", []string{})

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:            getEnvAsInt("PORT", 8000),
		Host:            getEnv("HOST", "0.0.0.0"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		SiteURLRoot:     getEnv("SITE_URL_ROOT", "/"),
		AdminURLPath:    getEnv("ADMIN_URL_PATH", "/admin/export/"),
	}
}

func loadSierraDBConfig() SierraDBConfig {
	return SierraDBConfig{
		Host:     getEnv("SIERRA_DB_HOST", ""),
		Port:     getEnvAsInt("SIERRA_DB_PORT", 1032),
		Name:     getEnv("SIERRA_DB_NAME", "iii"),
		Username: getEnv("SIERRA_DB_USER", ""),
		Password: getEnv("SIERRA_DB_PASSWORD", ""),
		SSLMode:  getEnv("SIERRA_DB_SSL_MODE", "disable"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Type:                  getEnv("DB_TYPE", "sqlite"),
		Path:                  getEnv("DB_PATH", "./sierra_export.db"),
		Host:                  getEnv("DB_HOST", "localhost"),
		Port:                  getEnvAsInt("DB_PORT", 5432),
		Name:                  getEnv("DB_NAME", "sierra_export"),
		Username:              getEnv("DB_USERNAME", ""),
		Password:              getEnv("DB_PASSWORD", ""),
		SSLMode:               getEnv("DB_SSL_MODE", "disable"),
		MaxOpenConnections:    getEnvAsInt("DB_MAX_OPEN_CONNECTIONS", 25),
		MaxIdleConnections:    getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
		ConnectionMaxLifetime: getEnvAsDuration("DB_CONNECTION_MAX_LIFETIME", 5*time.Minute),
	}
}

func loadSolrConfig() SolrConfig {
	// SOLR_PORT feeds the default per-core URLs, which explicit URL
	// variables override.
	port := getEnvAsInt("SOLR_PORT", 8983)

	return SolrConfig{
		Port:        port,
		BibdataURL:  getEnv("SOLR_BIBDATA_URL", fmt.Sprintf("http://127.0.0.1:%d/solr/bibdata", port)),
		HaystackURL: getEnv("SOLR_HAYSTACK_URL", fmt.Sprintf("http://127.0.0.1:%d/solr/haystack", port)),
		MarcURL:     getEnv("SOLR_MARC_URL", fmt.Sprintf("http://127.0.0.1:%d/solr/marc", port)),
		Timeout:     getEnvAsDuration("SOLR_TIMEOUT", 60*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	port := getEnvAsInt("REDIS_PORT", 6379)

	return RedisConfig{
		Enabled:         getEnvAsBool("REDIS_ENABLED", true),
		Host:            getEnv("REDIS_HOST", "localhost"),
		Port:            port,
		QueueDatabase:   getEnvAsInt("REDIS_QUEUE_DATABASE", 0),
		AppdataDatabase: getEnvAsInt("REDIS_APPDATA_DATABASE", 1),
		Password:        getEnv("REDIS_PASSWORD", ""),
		KeyPrefix:       getEnv("REDIS_KEY_PREFIX", "sierra-export:"),
		LockTTL:         getEnvAsDuration("REDIS_LOCK_TTL", 30*time.Minute),
	}
}

func loadKafkaConfig() KafkaConfig {
	brokers := getEnvAsStringSlice("KAFKA_BROKERS", []string{})

	return KafkaConfig{
		Enabled:  len(brokers) > 0,
		Brokers:  brokers,
		Topic:    getEnv("KAFKA_TOPIC", "catalog.exports.events"),
		ClientID: getEnv("KAFKA_CLIENT_ID", "sierra-export"),
		Timeout:  getEnvAsDuration("KAFKA_TIMEOUT", 30*time.Second),
	}
}

func loadMailConfig() MailConfig {
	return MailConfig{
		Host:           getEnv("EMAIL_HOST", "localhost"),
		Port:           getEnvAsInt("EMAIL_PORT", 25),
		Username:       getEnv("EMAIL_HOST_USER", ""),
		Password:       getEnv("EMAIL_HOST_PASSWORD", ""),
		From:           getEnv("EMAIL_FROM", "sierra-export@localhost"),
		Admins:         parseAdmins(getEnv("ADMINS", "")),
		EmailOnError:   getEnvAsBool("EXPORTER_EMAIL_ON_ERROR", true),
		EmailOnWarning: getEnvAsBool("EXPORTER_EMAIL_ON_WARNING", true),
	}
}

func loadExporterConfig() ExporterConfig {
	return ExporterConfig{
		AutomatedUsername:    getEnv("EXPORTER_AUTOMATED_USERNAME", "django_admin"),
		MaxRecChunkOverrides: parseChunkOverrides(getEnv("EXPORTER_MAX_RC_CONFIG", "")),
		MaxDelChunkOverrides: parseChunkOverrides(getEnv("EXPORTER_MAX_DC_CONFIG", "")),
		MaxWorkers:           getEnvAsInt("EXPORTER_MAX_WORKERS", 4),
		Schedules:            parseSchedules(getEnv("EXPORT_SCHEDULES", "")),
	}
}

// parseSchedules reads a semicolon-separated list of
// type:filter:cronspec entries, e.g.
// "BibsToSolr:last_export:0 2 * * *;AllMetadataToSolr:full_export:0 4 * * 0".
// Malformed entries are skipped.
func parseSchedules(raw string) []ScheduleEntry {
	var schedules []ScheduleEntry
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			continue
		}
		schedules = append(schedules, ScheduleEntry{
			ExportType: strings.TrimSpace(parts[0]),
			Filter:     strings.TrimSpace(parts[1]),
			CronSpec:   strings.TrimSpace(parts[2]),
		})
	}
	return schedules
}

func loadMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled: getEnvAsBool("METRICS_ENABLED", true),
		Port:    getEnvAsInt("METRICS_PORT", 9090),
		Path:    getEnv("METRICS_PATH", "/metrics"),
	}
}

// parseAdmins parses a comma-separated list of Name:email pairs.
// Entries without a name use the mailbox part of the address as the
// display name.
func parseAdmins(value string) []Admin {
	var admins []Admin
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, email, found := strings.Cut(entry, ":")
		if !found {
			email = name
			name = strings.Split(email, "@")[0]
		}
		admins = append(admins, Admin{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)})
	}
	return admins
}

// parseChunkOverrides parses a comma-separated list of Type:size pairs
func parseChunkOverrides(value string) map[string]int {
	overrides := make(map[string]int)
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, sizeStr, found := strings.Cut(entry, ":")
		if !found {
			continue
		}
		size, err := strconv.Atoi(strings.TrimSpace(sizeStr))
		if err != nil || size < 1 {
			continue
		}
		overrides[strings.TrimSpace(name)] = size
	}
	return overrides
}

// ExportLogFile returns the path of the export job log file. The path
// is embedded in error/warning notification messages.
func (c *Config) ExportLogFile() string {
	return filepath.Join(c.LogFileDir, "exporter.log")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}

	// Sierra credentials have no usable defaults.
	if c.SierraDB.Username == "" {
		return fmt.Errorf("SIERRA_DB_USER is required")
	}
	if c.SierraDB.Password == "" {
		return fmt.Errorf("SIERRA_DB_PASSWORD is required")
	}
	if c.SierraDB.Host == "" {
		return fmt.Errorf("SIERRA_DB_HOST is required")
	}

	if c.Database.Type == "" {
		return fmt.Errorf("database type is required")
	}
	if c.Database.Type == "sqlite" && c.Database.Path == "" {
		return fmt.Errorf("database path is required for SQLite")
	}
	if c.Database.Type != "sqlite" && c.Database.Host == "" {
		return fmt.Errorf("database host is required for %s", c.Database.Type)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}

	if c.LogFileDir == "" {
		return fmt.Errorf("LOG_FILE_DIR is required")
	}

	for _, pattern := range c.CORSOriginRegexWhitelist {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid CORS origin pattern %q: %w", pattern, err)
		}
	}

	if c.Exporter.MaxWorkers < 1 {
		return fmt.Errorf("EXPORTER_MAX_WORKERS must be at least 1")
	}

	return nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
