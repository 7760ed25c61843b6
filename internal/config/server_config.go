package config

import (
	"crypto/subtle"
	"net"
	"strconv"
	"strings"
)

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	// Host is the interface to bind to. Empty binds all interfaces.
	Host string `yaml:"host" json:"host"`
	// Port is the HTTP port.
	Port int `yaml:"port" json:"port"`
	// Debug enables debug logging and gin debug mode.
	Debug bool `yaml:"debug" json:"debug"`
	// RequestLog enables per-request access logging.
	RequestLog bool `yaml:"request-log" json:"request-log"`
	// ProxyURL is the URL of an optional proxy server used by strategies that
	// set none of their own.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`
	// APIKeys protect the management endpoints. Empty leaves them open.
	APIKeys []string `yaml:"api-keys" json:"api-keys"`
	// CORSAllowOrigins restricts browser origins. Empty allows any origin.
	CORSAllowOrigins []string `yaml:"cors-allow-origins" json:"cors-allow-origins"`
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ManagementProtected reports whether management endpoints need a key.
func (c *ServerConfig) ManagementProtected() bool {
	for _, k := range c.APIKeys {
		if strings.TrimSpace(k) != "" {
			return true
		}
	}
	return false
}

// ValidAPIKey reports whether key matches one of the configured keys.
func (c *ServerConfig) ValidAPIKey(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	for _, k := range c.APIKeys {
		k = strings.TrimSpace(k)
		if k != "" && subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}
