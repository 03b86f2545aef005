package config

import "testing"

var loadKeys = []string{
	"SERVER_PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT", "SERVER_PUBLIC_URL",
	"STORE_PATH", "MODULES_MANIFESTS_PATH", "MODULES_ASSETS_PATH",
	"LIBRARY_BACKEND", "LIBRARY_PATH", "LIBRARY_BASE_URL", "LIBRARY_S3_BUCKET", "LIBRARY_S3_PREFIX", "LIBRARY_AWS_PROFILE",
	"CACHE_BACKEND", "CACHE_TTL_SECONDS",
	"REDIS_URL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"AMQP_URL", "AMQP_EXCHANGE", "NOTIFIER", "LOG_LEVEL",
}

// clearEnv blanks every variable Load reads; getEnv treats an empty value as unset
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range loadKeys {
		t.Setenv(key, "")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("WIDGETS_TEST_STRING", "myvalue")
	t.Setenv("WIDGETS_TEST_INT", "42")
	t.Setenv("WIDGETS_TEST_INT_BAD", "not_a_number")
	t.Setenv("WIDGETS_TEST_EMPTY", "")

	if got := getEnv("WIDGETS_TEST_STRING", "default"); got != "myvalue" {
		t.Errorf("getEnv = %q, want myvalue", got)
	}
	if got := getEnv("WIDGETS_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Errorf("getEnv on empty = %q, want fallback", got)
	}

	intCases := []struct {
		key  string
		def  int
		want int
	}{
		{"WIDGETS_TEST_INT", 10, 42},
		{"WIDGETS_TEST_INT_BAD", 99, 99},
		{"WIDGETS_TEST_EMPTY", 7, 7},
	}
	for _, tc := range intCases {
		if got := getEnvAsInt(tc.key, tc.def); got != tc.want {
			t.Errorf("getEnvAsInt(%s) = %d, want %d", tc.key, got, tc.want)
		}
	}
}

func TestGetRedisAddr(t *testing.T) {
	testCases := []struct {
		name      string
		redisURL  string
		redisAddr string
		want      string
	}{
		{"url with scheme", "redis://myhost:6380", "", "myhost:6380"},
		{"url without scheme", "otherhost:6381", "", "otherhost:6381"},
		{"url wins over addr", "redis://url-host:1111", "addr-host:2222", "url-host:1111"},
		{"addr only", "", "addr-host:9999", "addr-host:9999"},
		{"default", "", "", "localhost:6379"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("REDIS_URL", tc.redisURL)
			t.Setenv("REDIS_ADDR", tc.redisAddr)

			if got := getRedisAddr(); got != tc.want {
				t.Errorf("getRedisAddr() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	testCases := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 8080 {
					t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
				}
				if cfg.Server.PublicURL != "" {
					t.Errorf("Server.PublicURL = %q, want empty", cfg.Server.PublicURL)
				}
				if cfg.Store.Path != "data/widgets.db" {
					t.Errorf("Store.Path = %q", cfg.Store.Path)
				}
				if cfg.Library.Backend != "local" || cfg.Library.BaseURL != "/library" || cfg.Library.S3Prefix != "modules" {
					t.Errorf("Library = %+v", cfg.Library)
				}
				if cfg.Cache.Backend != "memory" || cfg.Cache.TTLSeconds != 300 {
					t.Errorf("Cache = %+v, want memory/300", cfg.Cache)
				}
				if cfg.Notifier != "none" {
					t.Errorf("Notifier = %q, want none", cfg.Notifier)
				}
				if cfg.AMQP.Exchange != "matrx.widgets" {
					t.Errorf("AMQP.Exchange = %q", cfg.AMQP.Exchange)
				}
			},
		},
		{
			name: "overrides",
			env: map[string]string{
				"SERVER_PORT":       "9090",
				"CACHE_BACKEND":     "redis",
				"CACHE_TTL_SECONDS": "0",
				"LIBRARY_BACKEND":   "s3",
				"LIBRARY_S3_BUCKET": "signage-assets",
				"LIBRARY_S3_PREFIX": "widgets/system",
				"REDIS_DB":          "3",
				"NOTIFIER":          "amqp",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 9090 {
					t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
				}
				if cfg.Cache.Backend != "redis" || cfg.Cache.TTLSeconds != 0 {
					t.Errorf("Cache = %+v, want redis/0", cfg.Cache)
				}
				if cfg.Library.S3Bucket != "signage-assets" || cfg.Library.S3Prefix != "widgets/system" {
					t.Errorf("Library = %+v", cfg.Library)
				}
				if cfg.Redis.DB != 3 {
					t.Errorf("Redis.DB = %d, want 3", cfg.Redis.DB)
				}
				if cfg.Notifier != "amqp" {
					t.Errorf("Notifier = %q, want amqp", cfg.Notifier)
				}
			},
		},
		{
			name: "bad ttl falls back",
			env:  map[string]string{"CACHE_TTL_SECONDS": "five minutes"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Cache.TTLSeconds != 300 {
					t.Errorf("Cache.TTLSeconds = %d, want 300", cfg.Cache.TTLSeconds)
				}
			},
		},
		{
			name: "trailing slashes trimmed",
			env: map[string]string{
				"SERVER_PUBLIC_URL": "https://cms.example.com/",
				"LIBRARY_BASE_URL":  "https://cdn.example.com/lib/",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.PublicURL != "https://cms.example.com" {
					t.Errorf("Server.PublicURL = %q", cfg.Server.PublicURL)
				}
				if cfg.Library.BaseURL != "https://cdn.example.com/lib" {
					t.Errorf("Library.BaseURL = %q", cfg.Library.BaseURL)
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for key, value := range tc.env {
				t.Setenv(key, value)
			}

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tc.check(t, cfg)
		})
	}
}
