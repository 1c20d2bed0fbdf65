package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ReportsMissingRequired(t *testing.T) {
	// Ensure a clean env by not setting anything and calling validation directly.
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func validProduction() Config {
	return Config{
		App:    AppConfig{Env: "production", Port: 8080},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "dialer", SSLMode: "require"},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		Auth:   AuthConfig{JWTSecret: "secret", JWTIssuer: "i", JWTAudience: "a"},
		Dialer: DialerConfig{WebhookToken: "t"},
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validProduction()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid production config, got %v", err)
	}
	c.DB.SSLMode = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_ProductionRequiresStoresAndWebhookToken(t *testing.T) {
	c := validProduction()
	c.DB.Host = ""
	c.Redis.Host = ""
	c.Dialer.WebhookToken = ""
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected errors")
	}
	for _, want := range []string{"DB_HOST", "REDIS_HOST", "DIALER_WEBHOOK_TOKEN"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "dialer"},
		Auth:  AuthConfig{JWTSecret: "secret"},
		MQTT:  MQTTConfig{Broker: "tcp://localhost:1883"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.MQTT.ClientID == "" || c.MQTT.TopicPrefix != "dialer" {
		t.Fatalf("expected mqtt defaults, got %+v", c.MQTT)
	}
	if c.Auth.AccessTokenTTL != 12*time.Hour {
		t.Fatalf("expected default access ttl, got %s", c.Auth.AccessTokenTTL)
	}
}

func TestValidate_AnswerWindowOrder(t *testing.T) {
	c := Config{
		App:    AppConfig{Env: "local", Port: 8080},
		Auth:   AuthConfig{JWTSecret: "secret"},
		Dialer: DialerConfig{AnswerWindowMin: 10 * time.Second, AnswerWindowMax: 5 * time.Second},
	}
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "ANSWER_WINDOW") {
		t.Fatalf("expected answer window error, got %v", err)
	}
}

func TestApplyYAML_TuningFile(t *testing.T) {
	c := Config{Dialer: DialerConfig{CountryCode: "27", FeedSize: 50}}
	err := c.applyYAML([]byte(`
dialer:
  answer_window_min: 4s
  answer_window_max: 9s
  max_call_duration: 45m
  launcher_mode: log
wrapup:
  retry_attempts: 5
  retry_interval: 2m
callbacks:
  schedule: "@every 30s"
`))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.Dialer.AnswerWindowMin != 4*time.Second || c.Dialer.AnswerWindowMax != 9*time.Second || c.Dialer.MaxCallDuration != 45*time.Minute {
		t.Fatalf("unexpected dialer tuning: %+v", c.Dialer)
	}
	if c.Dialer.CountryCode != "27" || c.Dialer.FeedSize != 50 {
		t.Fatalf("file must not reset unset fields: %+v", c.Dialer)
	}
	if c.WrapUp.RetryAttempts != 5 || c.WrapUp.RetryInterval != 2*time.Minute || c.Callbacks.Schedule != "@every 30s" || c.Dialer.LauncherMode != "log" {
		t.Fatalf("unexpected overlay: %+v %+v", c.WrapUp, c.Callbacks)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dialer.yaml")
	if err := os.WriteFile(path, []byte("dialer:\n  answer_window_min: 4s\n  answer_window_max: 9s\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DIALER_CONFIG_FILE", path)
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DIALER_ANSWER_WINDOW_MAX", "20s")

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.Dialer.AnswerWindowMin != 4*time.Second || c.Dialer.AnswerWindowMax != 20*time.Second {
		t.Fatalf("unexpected window: %s..%s", c.Dialer.AnswerWindowMin, c.Dialer.AnswerWindowMax)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DIALER_MAX_CALL_DURATION", "forever")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DIALER_MAX_CALL_DURATION") {
		t.Fatalf("expected duration parse error, got %v", err)
	}
}

func TestLoad_StoreAndLoggingKnobs(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("DB_AUTO_MIGRATE", "true")
	t.Setenv("DB_MAX_OPEN_CONNS", "4")
	t.Setenv("REDIS_DB", "2")

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.App.LogLevel != "warn" || !c.DB.AutoMigrate || c.DB.MaxOpenConns != 4 || c.Redis.DB != 2 {
		t.Fatalf("unexpected config: app=%+v db=%+v redis=%+v", c.App, c.DB, c.Redis)
	}
}

func TestLoad_BadBooleanAndLevel(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_AUTO_MIGRATE", "sometimes")
	t.Setenv("LOG_LEVEL", "chatty")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected errors")
	}
	for _, want := range []string{"DB_AUTO_MIGRATE", "LOG_LEVEL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}
}
