package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// Values come from env (or env-file loaded by the process runner), with an
// optional YAML file for dialer tuning named by DIALER_CONFIG_FILE.
// Environment variables win over the file.
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Dialer     DialerConfig
	WrapUp     WrapUpConfig
	Checkpoint CheckpointConfig
	MQTT       MQTTConfig
	Callbacks  CallbacksConfig
}

type AppConfig struct {
	Env  string
	Port int
	// LogLevel overrides the env-derived default (debug locally, info elsewhere).
	LogLevel string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	MaxOpenConns int
	// AutoMigrate creates the wrap-up and audit tables on start.
	AutoMigrate bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type DialerConfig struct {
	CountryCode       string `yaml:"country_code"`
	NationalNumberLen int    `yaml:"national_number_len"`

	AnswerWindowMin  time.Duration `yaml:"answer_window_min"`
	AnswerWindowMax  time.Duration `yaml:"answer_window_max"`
	MaxCallDuration  time.Duration `yaml:"max_call_duration"`
	MinPlausibleCall time.Duration `yaml:"min_plausible_call"`

	LookupTimeout time.Duration `yaml:"lookup_timeout"`
	LaunchTimeout time.Duration `yaml:"launch_timeout"`

	// LauncherMode is "uri" (open a dial URI) or "log".
	LauncherMode string   `yaml:"launcher_mode"`
	DialScheme   string   `yaml:"dial_scheme"`
	OpenCommand  string   `yaml:"open_command"`
	OpenArgs     []string `yaml:"open_args"`

	WebhookToken string `yaml:"-"`
	FeedSize     int    `yaml:"feed_size"`
}

type WrapUpConfig struct {
	PersistTimeout time.Duration `yaml:"persist_timeout"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	// RetryInterval is how often wrap-ups that failed to persist are resent.
	RetryInterval  time.Duration `yaml:"retry_interval"`
}

type CheckpointConfig struct {
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"-"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// Enabled reports whether call events and notifications go to a broker.
func (m MQTTConfig) Enabled() bool { return m.Broker != "" }

type CallbacksConfig struct {
	Disabled  bool          `yaml:"disabled"`
	Schedule  string        `yaml:"schedule"`
	Lookahead time.Duration `yaml:"lookahead"`
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	if path := strings.TrimSpace(os.Getenv("DIALER_CONFIG_FILE")); path != "" {
		if err := c.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.LogLevel = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = optInt("DB_PORT", 5432, &parseErrs)
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	c.DB.MaxOpenConns = optInt("DB_MAX_OPEN_CONNS", 0, &parseErrs)
	c.DB.AutoMigrate = optBool("DB_AUTO_MIGRATE", false, &parseErrs)

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = optInt("REDIS_PORT", 6379, &parseErrs)
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	c.Redis.DB = optInt("REDIS_DB", 0, &parseErrs)

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	d := &c.Dialer
	d.CountryCode = optString("DIALER_COUNTRY_CODE", d.CountryCode)
	d.NationalNumberLen = optInt("DIALER_NATIONAL_NUMBER_LEN", d.NationalNumberLen, &parseErrs)
	d.AnswerWindowMin = optDuration("DIALER_ANSWER_WINDOW_MIN", d.AnswerWindowMin, &parseErrs)
	d.AnswerWindowMax = optDuration("DIALER_ANSWER_WINDOW_MAX", d.AnswerWindowMax, &parseErrs)
	d.MaxCallDuration = optDuration("DIALER_MAX_CALL_DURATION", d.MaxCallDuration, &parseErrs)
	d.MinPlausibleCall = optDuration("DIALER_MIN_PLAUSIBLE_CALL", d.MinPlausibleCall, &parseErrs)
	d.LookupTimeout = optDuration("DIALER_LOOKUP_TIMEOUT", d.LookupTimeout, &parseErrs)
	d.LaunchTimeout = optDuration("DIALER_LAUNCH_TIMEOUT", d.LaunchTimeout, &parseErrs)
	d.LauncherMode = optString("DIALER_LAUNCHER_MODE", d.LauncherMode)
	d.DialScheme = optString("DIALER_DIAL_SCHEME", d.DialScheme)
	d.OpenCommand = optString("DIALER_OPEN_COMMAND", d.OpenCommand)
	d.WebhookToken = os.Getenv("DIALER_WEBHOOK_TOKEN")
	d.FeedSize = optInt("DIALER_FEED_SIZE", d.FeedSize, &parseErrs)

	c.WrapUp.PersistTimeout = optDuration("WRAPUP_PERSIST_TIMEOUT", c.WrapUp.PersistTimeout, &parseErrs)
	c.WrapUp.RetryAttempts = optInt("WRAPUP_RETRY_ATTEMPTS", c.WrapUp.RetryAttempts, &parseErrs)
	c.WrapUp.RetryInterval = optDuration("WRAPUP_RETRY_INTERVAL", c.WrapUp.RetryInterval, &parseErrs)

	c.Checkpoint.KeyPrefix = optString("CHECKPOINT_KEY_PREFIX", c.Checkpoint.KeyPrefix)
	c.Checkpoint.TTL = optDuration("CHECKPOINT_TTL", c.Checkpoint.TTL, &parseErrs)

	c.MQTT.Broker = optString("MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.ClientID = optString("MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.Username = optString("MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = os.Getenv("MQTT_PASSWORD")
	c.MQTT.TopicPrefix = optString("MQTT_TOPIC_PREFIX", c.MQTT.TopicPrefix)
	c.MQTT.QoS = optInt("MQTT_QOS", c.MQTT.QoS, &parseErrs)

	c.Callbacks.Disabled = optBool("CALLBACKS_DISABLED", c.Callbacks.Disabled, &parseErrs)
	c.Callbacks.Schedule = optString("CALLBACKS_SCHEDULE", c.Callbacks.Schedule)
	c.Callbacks.Lookahead = optDuration("CALLBACKS_LOOKAHEAD", c.Callbacks.Lookahead, &parseErrs)

	// Validate runs even after parse errors so one start reports everything.
	if err := c.Validate(); err != nil {
		parseErrs = append(parseErrs, err)
	}
	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every problem at once and fills local-friendly defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	switch c.App.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.App.LogLevel))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	// Local runs may skip Postgres and Redis and use in-memory stores.
	if c.DB.Host == "" {
		if !c.IsLocal() {
			errs = append(errs, errors.New("DB_HOST is required"))
		}
	} else {
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.MaxOpenConns < 0 {
			errs = append(errs, fmt.Errorf("DB_MAX_OPEN_CONNS must not be negative, got %d", c.DB.MaxOpenConns))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required"))
		}
		if strings.TrimSpace(c.DB.SSLMode) == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				// Local-friendly default; production must be explicit.
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	if c.Redis.Host == "" {
		if !c.IsLocal() {
			errs = append(errs, errors.New("REDIS_HOST is required"))
		}
	} else if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Dialer.WebhookToken == "" {
			errs = append(errs, errors.New("DIALER_WEBHOOK_TOKEN is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		// Default: a working shift.
		c.Auth.AccessTokenTTL = 12 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	d := c.Dialer
	if d.AnswerWindowMin > 0 && d.AnswerWindowMax > 0 && d.AnswerWindowMax < d.AnswerWindowMin {
		errs = append(errs, errors.New("DIALER_ANSWER_WINDOW_MAX must not be below DIALER_ANSWER_WINDOW_MIN"))
	}
	if d.MaxCallDuration < 0 || d.MinPlausibleCall < 0 {
		errs = append(errs, errors.New("dialer durations must not be negative"))
	}
	switch strings.ToLower(d.LauncherMode) {
	case "", "uri", "log":
	default:
		errs = append(errs, fmt.Errorf("DIALER_LAUNCHER_MODE must be one of uri, log, got %q", d.LauncherMode))
	}

	if c.WrapUp.RetryInterval < 0 {
		errs = append(errs, fmt.Errorf("WRAPUP_RETRY_INTERVAL must not be negative, got %s", c.WrapUp.RetryInterval))
	}
	if c.WrapUp.RetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("WRAPUP_RETRY_ATTEMPTS must not be negative, got %d", c.WrapUp.RetryAttempts))
	}

	if c.MQTT.Enabled() {
		if c.MQTT.ClientID == "" {
			c.MQTT.ClientID = "collections-dialer"
		}
		if c.MQTT.TopicPrefix == "" {
			c.MQTT.TopicPrefix = "dialer"
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTT.QoS))
		}
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) IsLocal() bool {
	return c.App.Env == "local"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func optString(key, cur string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return cur
}

func optInt(key string, cur int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return cur
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return cur
	}
	return n
}

func optBool(key string, cur bool, errs *[]error) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return cur
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
		return cur
	}
	return b
}

func optDuration(key string, cur time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return cur
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a duration, got %q", key, v))
		return cur
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
