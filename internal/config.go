package internal

import (
	"fmt"
	"time"
)

type Config struct {
	BadgerFilepath  string        `env:"BADGER_FILEPATH,default=./data/badger"`
	BadgerInMemory  bool          `env:"BADGER_IN_MEMORY,default=false"`
	BlugeFilepath   string        `env:"BLUGE_FILEPATH"`
	LogLevel        string        `env:"LOG_LEVEL,required=true"`
	Host            string        `env:"HOST,default=0.0.0.0"`
	Port            int           `env:"PORT,default=8080"`
	AuthSecret      string        `env:"AUTH_SECRET,required=true"`
	AuthTokenTTL    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	PruneInterval   time.Duration `env:"AUTH_PRUNE_INTERVAL,default=10m"`
	DisplayLayout   string        `env:"DISPLAY_TIMESTAMP_LAYOUT"`
	DisplayTimezone string        `env:"DISPLAY_TIMEZONE,default=Local"`
	WriteTimeout    time.Duration `env:"WS_WRITE_TIMEOUT,default=10s"`
	PingInterval    time.Duration `env:"WS_PING_INTERVAL,default=30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DisplayLocation resolves the timezone used to render timestamps.
func (c Config) DisplayLocation() (*time.Location, error) {
	location, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("DISPLAY_TIMEZONE must be an IANA zone name, got %q: %w", c.DisplayTimezone, err)
	}
	return location, nil
}
