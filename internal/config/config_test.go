package config

import (
	"strings"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		Calls: CallsConfig{StoreDriver: StoreMemory, LockTTL: 10 * time.Second},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"APP_ENV", "JWT_SECRET", "CALLS_STORE"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err.Error())
		}
	}
}

func TestValidate_LocalMemoryStore(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected access ttl default, got %v", c.Auth.AccessTokenTTL)
	}
}

func TestValidate_ProductionRejectsMemoryStore(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for memory store in production")
	}
}

func TestValidate_PostgresRequiresDB(t *testing.T) {
	c := validLocal()
	c.Calls.StoreDriver = StorePostgres
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_HOST") {
		t.Fatalf("expected DB_HOST error, got %v", err)
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "production", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "webconf"},
		Calls: CallsConfig{StoreDriver: StorePostgres, LockTTL: time.Second},
		Auth:  AuthConfig{JWTSecret: "secret", JWTIssuer: "iss", JWTAudience: "aud"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_RedisLockTTL(t *testing.T) {
	c := validLocal()
	c.Redis = RedisConfig{Host: "localhost", Port: 6379}
	c.Calls.LockTTL = time.Second
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "CALLS_LOCK_TTL") {
		t.Fatalf("expected CALLS_LOCK_TTL error, got %v", err)
	}

	c.Calls.LockTTL = minRedisLockTTL
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Without Redis the ttl is unused beyond being positive.
	c.Redis = RedisConfig{}
	c.Calls.LockTTL = time.Second
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validLocal()
	c.Calls.StoreDriver = StorePostgres
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "webconf"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_LiveKitPairRequired(t *testing.T) {
	c := validLocal()
	c.LiveKit.APIKey = "key"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for api key without secret")
	}
}

func TestLoad_ParsesEnvironment(t *testing.T) {
	t.Setenv("ENV_FILE", t.TempDir()+"/missing.env")
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("CALLS_STORE", "badger")
	t.Setenv("CALLS_BADGER_DIR", "/tmp/calls")
	t.Setenv("NOTIFY_WORKERS", "4")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.App.Port != 9090 || c.Calls.StoreDriver != StoreBadger || c.Notify.Workers != 4 {
		t.Fatalf("unexpected config: %+v", c)
	}
	if c.Calls.LockTTL != 30*time.Second {
		t.Fatalf("expected lock ttl default, got %v", c.Calls.LockTTL)
	}
	if c.HTTPAddr() != ":9090" {
		t.Fatalf("unexpected addr %q", c.HTTPAddr())
	}
}
