package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from its environment so main
// stays lean. Enablement-service endpoints (connector, registry, submodel
// store) are the defaults for stacks that carry no explicit connection
// settings of their own.
type Config struct {
	Addr          string
	JWTSigningKey string

	PostgresDSN string
	Redis       RedisConfig
	Kafka       KafkaConfig

	Connector ConnectorConfig
	Registry  RegistryConfig

	// DispatcherBaseURL is the externally reachable base URL of the submodel
	// dispatcher; connector assets point their data address at it.
	DispatcherBaseURL string
	DispatcherAPIKey  string
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type ConnectorConfig struct {
	ManagementURL string
	CatalogURL    string
	APIKeyHeader  string
	APIKey        string
}

type RegistryConfig struct {
	URL    string
	APIKey string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:          getenv("TWINHUB_ADDR", ":8080"),
		JWTSigningKey: getenv("TWINHUB_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:   os.Getenv("TWINHUB_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("TWINHUB_REDIS_URL"),
			PoolSize:     getenvInt("TWINHUB_REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("TWINHUB_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("TWINHUB_KAFKA_BROKERS")),
			Topic:   getenv("TWINHUB_KAFKA_TOPIC", "twinhub.registrations"),
		},
		Connector: ConnectorConfig{
			ManagementURL: getenv("TWINHUB_EDC_MANAGEMENT_URL", "http://localhost:8081/management"),
			CatalogURL:    getenv("TWINHUB_EDC_CATALOG_URL", "http://localhost:8081/api/v1/dsp"),
			APIKeyHeader:  getenv("TWINHUB_EDC_API_KEY_HEADER", "X-Api-Key"),
			APIKey:        os.Getenv("TWINHUB_EDC_API_KEY"),
		},
		Registry: RegistryConfig{
			URL:    getenv("TWINHUB_DTR_URL", "http://localhost:8443/api/v3"),
			APIKey: os.Getenv("TWINHUB_DTR_API_KEY"),
		},
		DispatcherBaseURL: getenv("TWINHUB_DISPATCHER_BASE_URL", "http://localhost:8080/submodel-dispatcher"),
		DispatcherAPIKey:  os.Getenv("TWINHUB_DISPATCHER_API_KEY"),
	}
	return cfg
}

// Validate catches endpoint typos before the first registration fails on them.
func (c Config) Validate() error {
	for name, raw := range map[string]string{
		"connector management URL": c.Connector.ManagementURL,
		"connector catalog URL":    c.Connector.CatalogURL,
		"registry URL":             c.Registry.URL,
		"dispatcher base URL":      c.DispatcherBaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid %s: %q", name, raw)
		}
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
