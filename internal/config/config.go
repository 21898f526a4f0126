package config

import (
	"net"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const DefaultListenAddr = "127.0.0.1:9123"

type Config struct {
	ListenAddr        string
	MaxBodyBytes      int64
	StrictPaths       bool
	LogRequests       bool
	LogLevel          string
	JournalPath       string
	JournalTTL        time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:        DefaultListenAddr,
		LogLevel:          "info",
		JournalTTL:        7 * 24 * time.Hour,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// Validate rejects settings the daemon cannot honour. The listen address
// must resolve to loopback; exposure goes through a reverse proxy.
func (c Config) Validate() error {
	if err := ValidateLoopback(c.ListenAddr); err != nil {
		return err
	}
	if c.MaxBodyBytes < 0 {
		return invalid("max body bytes must be >= 0", map[string]any{"max_body_bytes": c.MaxBodyBytes})
	}
	if c.JournalPath != "" && c.JournalTTL <= 0 {
		return invalid("journal ttl must be positive", map[string]any{"journal_ttl": c.JournalTTL.String()})
	}
	return nil
}

func ValidateLoopback(addr string) error {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return invalid("listen address must be host:port", map[string]any{"listen_addr": addr})
	}
	if port == "" {
		return invalid("listen address is missing a port", map[string]any{"listen_addr": addr})
	}
	if strings.EqualFold(host, "localhost") {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return invalid("listen address must be loopback", map[string]any{"listen_addr": addr})
	}
	return nil
}

func invalid(message string, metadata map[string]any) error {
	err := goerrors.New("config: "+message, goerrors.CategoryValidation).
		WithCode(http.StatusBadRequest).
		WithTextCode("INVALID_CONFIG")
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}
