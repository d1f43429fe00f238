package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// App is the full runtime configuration, loaded once at startup from the
// environment. A missing required value or an unparseable timezone aborts
// startup.
type App struct {
	// DB
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	// HTTP
	Port               string   `envconfig:"PORT" default:"8080"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	// Identity. Tokens are verified only when a secret is configured;
	// issuance lives with the external identity provider.
	AuthJWTSecret string `envconfig:"AUTH_JWT_SECRET"`
	// Club scheduling
	ClubTimezone      string        `envconfig:"CLUB_TIMEZONE" default:"UTC"`
	GeneratorWeeks    int           `envconfig:"GENERATOR_WEEKS_AHEAD" default:"4"`
	GeneratorInterval time.Duration `envconfig:"GENERATOR_INTERVAL" default:"24h"`
	// Credits
	ExpiringSoonDays int `envconfig:"EXPIRING_SOON_DAYS" default:"14"`
}

// Load reads the environment and validates the pieces envconfig cannot.
func Load() (App, error) {
	var c App
	if err := envconfig.Process("", &c); err != nil {
		return c, err
	}
	if _, err := time.LoadLocation(c.ClubTimezone); err != nil {
		return c, fmt.Errorf("invalid CLUB_TIMEZONE %q: %w", c.ClubTimezone, err)
	}
	if c.GeneratorWeeks < 1 {
		return c, fmt.Errorf("GENERATOR_WEEKS_AHEAD must be >= 1, got %d", c.GeneratorWeeks)
	}
	return c, nil
}

// Location resolves the club timezone. Load has already validated it.
func (c App) Location() *time.Location {
	loc, err := time.LoadLocation(c.ClubTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
