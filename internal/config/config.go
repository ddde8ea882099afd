// SPDX-License-Identifier: MIT

// Package config loads service configuration from the environment.
// Each service calls its Load* function once at process start; the
// returned struct is immutable thereafter.
package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolenv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durenv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func listenv(key, def string) []string {
	raw := getenv(key, def)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Keys holds PEM key material locations for token signing/verification.
// Services that only verify leave PrivateKeyPath empty.
type Keys struct {
	PrivateKeyPath string
	PublicKeyPath  string
	TokenTTL       time.Duration
}

// Kafka holds event-channel connection settings. Partition count and
// replication are deployment parameters; they are surfaced here only so
// provisioning tooling can read them.
type Kafka struct {
	Brokers     []string
	OrdersTopic string
	Partitions  int
	Group       string
	DLTGroup    string
	MaxRetries  int
}

// Gateway is the edge gateway configuration.
type Gateway struct {
	HTTPAddr        string
	RegistryAddr    string
	DefaultProfile  string
	RequestsPerMin  int
	ShutdownTimeout time.Duration
	Keys            Keys
}

// Auth is the authentication service configuration.
type Auth struct {
	HTTPAddr        string
	AdvertiseAddr   string
	RegistryAddr    string
	Profile         string
	ShutdownTimeout time.Duration
	Keys            Keys
}

// User is the user service configuration. FailureInjection enables the
// even-orderId failure policy on the order consumer; disable it for
// real deployments.
type User struct {
	HTTPAddr         string
	AdvertiseAddr    string
	RegistryAddr     string
	Profile          string
	RedisAddr        string
	CacheTTL         time.Duration
	FailureInjection bool
	ShutdownTimeout  time.Duration
	Keys             Keys
	Kafka            Kafka
}

// Order is the order service configuration.
type Order struct {
	HTTPAddr        string
	AdvertiseAddr   string
	RegistryAddr    string
	Profile         string
	RedisAddr       string
	LockTTL         time.Duration
	UserService     string
	ShutdownTimeout time.Duration
	Keys            Keys
	Kafka           Kafka
}

// advertiseAddr derives the base URL a service registers under. An
// explicit ADVERTISE_ADDR wins; otherwise the listen address is turned
// into a localhost URL, which is only right for single-host setups.
func advertiseAddr(httpAddr string) string {
	if v := os.Getenv("ADVERTISE_ADDR"); v != "" {
		return v
	}
	host, port, err := net.SplitHostPort(httpAddr)
	if err != nil {
		return "http://localhost" + httpAddr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func loadKeys() Keys {
	return Keys{
		PrivateKeyPath: getenv("JWT_PRIVATE_KEY", ""),
		PublicKeyPath:  getenv("JWT_PUBLIC_KEY", ""),
		TokenTTL:       durenv("JWT_TTL", 24*time.Hour),
	}
}

func loadKafka() Kafka {
	return Kafka{
		Brokers:     listenv("KAFKA_BROKERS", "localhost:9092"),
		OrdersTopic: getenv("KAFKA_ORDERS_TOPIC", "orders-topic"),
		Partitions:  atoienv("KAFKA_PARTITIONS", 3),
		Group:       getenv("KAFKA_GROUP", "user-service-group"),
		DLTGroup:    getenv("KAFKA_DLT_GROUP", "user-service-dlt"),
		MaxRetries:  atoienv("KAFKA_MAX_RETRIES", 3),
	}
}

// Registry is the standalone registry server configuration.
type Registry struct {
	HTTPAddr string
}

// LoadRegistry collects registry configuration from the environment.
func LoadRegistry() Registry {
	return Registry{
		HTTPAddr: getenv("HTTP_ADDR", ":8761"),
	}
}

// LoadGateway collects gateway configuration from the environment.
func LoadGateway() Gateway {
	return Gateway{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		RegistryAddr:    getenv("REGISTRY_ADDR", "http://localhost:8761"),
		DefaultProfile:  getenv("DEFAULT_PROFILE", "test"),
		RequestsPerMin:  atoienv("RATE_LIMIT_PER_MIN", 600),
		ShutdownTimeout: durenv("SHUTDOWN_TIMEOUT", 15*time.Second),
		Keys:            loadKeys(),
	}
}

// LoadAuth collects auth-service configuration from the environment.
func LoadAuth() Auth {
	return Auth{
		HTTPAddr:        getenv("HTTP_ADDR", ":8081"),
		AdvertiseAddr:   advertiseAddr(getenv("HTTP_ADDR", ":8081")),
		RegistryAddr:    getenv("REGISTRY_ADDR", "http://localhost:8761"),
		Profile:         getenv("PROFILE", "test"),
		ShutdownTimeout: durenv("SHUTDOWN_TIMEOUT", 15*time.Second),
		Keys:            loadKeys(),
	}
}

// LoadUser collects user-service configuration from the environment.
func LoadUser() User {
	return User{
		HTTPAddr:         getenv("HTTP_ADDR", ":8082"),
		AdvertiseAddr:    advertiseAddr(getenv("HTTP_ADDR", ":8082")),
		RegistryAddr:     getenv("REGISTRY_ADDR", "http://localhost:8761"),
		Profile:          getenv("PROFILE", "test"),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		CacheTTL:         durenv("CACHE_TTL", 10*time.Minute),
		FailureInjection: boolenv("FAILURE_INJECTION", true),
		ShutdownTimeout:  durenv("SHUTDOWN_TIMEOUT", 15*time.Second),
		Keys:             loadKeys(),
		Kafka:            loadKafka(),
	}
}

// LoadOrder collects order-service configuration from the environment.
func LoadOrder() Order {
	return Order{
		HTTPAddr:        getenv("HTTP_ADDR", ":8083"),
		AdvertiseAddr:   advertiseAddr(getenv("HTTP_ADDR", ":8083")),
		RegistryAddr:    getenv("REGISTRY_ADDR", "http://localhost:8761"),
		Profile:         getenv("PROFILE", "test"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		LockTTL:         durenv("LOCK_TTL", 10*time.Second),
		UserService:     getenv("USER_SERVICE_NAME", "user-service"),
		ShutdownTimeout: durenv("SHUTDOWN_TIMEOUT", 15*time.Second),
		Keys:            loadKeys(),
		Kafka:           loadKafka(),
	}
}
