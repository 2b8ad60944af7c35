package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

const (
	DirectoryRedis  = "redis"
	DirectoryMemory = "memory"
)

type Config struct {
	// Members
	Members     int           // number of OrderService instances (default: 3)
	NamePrefix  string        // directory name prefix (ex: "order-service-")
	MemberHost  string        // bind host for instance workers
	BasePort    int           // member i listens on BasePort+i, 0 = ephemeral
	FleetFile   string        // optional fleet.yaml, overrides member count and listen addresses
	Fleet       []FleetMember // loaded from FleetFile
	CallTimeout time.Duration // per remote call timeout (ex: 2s)

	// Coordinator
	PollInterval    time.Duration // interval between two scans (default: 5s)
	VerifyPromotion bool          // re-check liveness after activation
	ShutdownTimeout time.Duration // deadline of the shutdown protocol (ex: 5s)

	// Directory maintenance
	ReconcileInterval time.Duration // re-register lost names every interval, 0 = disabled (default: 30s)

	// Status server
	StatusAddr string // ex: ":8080", empty = disabled

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Directory
	Directory string // "redis" | "memory"

	// Redis
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts
}

func Load() *Config {
	cfg := &Config{
		Members:     getenvInt("STANDBY_MEMBERS", 3),
		NamePrefix:  getenv("STANDBY_NAME_PREFIX", "order-service-"),
		MemberHost:  getenv("STANDBY_MEMBER_HOST", "127.0.0.1"),
		BasePort:    getenvInt("STANDBY_MEMBER_BASE_PORT", 9090),
		FleetFile:   getenv("STANDBY_FLEET_FILE", ""),
		CallTimeout: mustDuration("STANDBY_CALL_TIMEOUT", 2*time.Second),

		PollInterval:    mustDuration("STANDBY_POLL_INTERVAL", 5*time.Second),
		VerifyPromotion: mustBool("STANDBY_VERIFY_PROMOTION", false),
		ShutdownTimeout: mustDuration("STANDBY_SHUTDOWN_TIMEOUT", 5*time.Second),

		ReconcileInterval: mustDuration("STANDBY_RECONCILE_INTERVAL", 30*time.Second),

		StatusAddr: os.Getenv("STANDBY_STATUS_ADDR"),

		LogLevel:  getenv("STANDBY_LOG_LEVEL", "info"),
		PrettyLog: mustBool("STANDBY_PRETTY_LOG", true),

		Directory: getenv("STANDBY_DIRECTORY", DirectoryRedis),

		RedisUser:           getenv("STANDBY_REDIS_USERNAME", ""),
		RedisPassword:       getenv("STANDBY_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("STANDBY_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),
	}

	// An unset status address falls back to :8080; an explicit empty value disables it.
	if _, set := os.LookupEnv("STANDBY_STATUS_ADDR"); !set {
		cfg.StatusAddr = ":8080"
	}

	switch cfg.Directory {
	case DirectoryRedis:
		cfg.RedisAddr = requireEnv("STANDBY_REDIS_ADDR")
	case DirectoryMemory:
	default:
		panic(fmt.Sprintf("❌ FATAL: STANDBY_DIRECTORY must be %q or %q, got %q", DirectoryRedis, DirectoryMemory, cfg.Directory))
	}

	if cfg.FleetFile != "" {
		fleet, err := LoadFleet(cfg.FleetFile)
		if err != nil {
			panic(fmt.Sprintf("❌ FATAL: %v", err))
		}
		cfg.Fleet = fleet.Members
		cfg.Members = len(fleet.Members)
		if fleet.Prefix != "" {
			cfg.NamePrefix = fleet.Prefix
		}
	}

	if cfg.Members <= 0 {
		panic(fmt.Sprintf("❌ FATAL: STANDBY_MEMBERS must be > 0, got %d", cfg.Members))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
