package relay

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
)

const (
	defaultHost       = "0.0.0.0"
	defaultPort       = "8080"
	defaultSendBuffer = 64
)

// Settings is the relay listener configuration.
type Settings struct {
	Host           string
	Port           string
	AllowedOrigins []string
	SendBuffer     int
	Location       *time.Location
}

// ConfigReader is the part of *apt.Config settings are read from.
type ConfigReader interface {
	GetStringOrDef(key, def string) string
}

// LoadSettings reads the server.* and relay.* keys. Bare HOST and PORT
// environment variables are honored when the namespaced keys are unset.
func LoadSettings(config ConfigReader, getenv func(string) string) (Settings, error) {
	if config == nil {
		config = apt.NewConfig()
	}
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	s := Settings{
		Host:       config.GetStringOrDef("server.host", orDefault(getenv("HOST"), defaultHost)),
		Port:       config.GetStringOrDef("server.port", orDefault(getenv("PORT"), defaultPort)),
		SendBuffer: defaultSendBuffer,
		Location:   time.Local,
	}

	if _, err := strconv.ParseUint(s.Port, 10, 16); err != nil {
		return Settings{}, fmt.Errorf("invalid server.port %q: %w", s.Port, err)
	}

	if origins := config.GetStringOrDef("server.allowed.origins", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				s.AllowedOrigins = append(s.AllowedOrigins, o)
			}
		}
	}

	if raw := config.GetStringOrDef("relay.send.buffer", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Settings{}, fmt.Errorf("invalid relay.send.buffer %q", raw)
		}
		s.SendBuffer = n
	}

	if zone := config.GetStringOrDef("relay.timezone", ""); zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid relay.timezone %q: %w", zone, err)
		}
		s.Location = loc
	}

	return s, nil
}

// Addr is the listen address.
func (s Settings) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
