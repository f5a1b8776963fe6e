package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/linesmerrill/esg-identity-api/logging"
)

// Config holds the project config values
type Config struct {
	URL                  string        `env:"DB_URI"`
	DatabaseName         string        `env:"DB_NAME" envDefault:"esg_identity"`
	BaseURL              string        `env:"BASE_URL" envDefault:"http://localhost:3000"`
	Port                 string        `env:"PORT" envDefault:"8080"`
	Env                  string        `env:"ENV" envDefault:"production"`
	SendGridAPIKey       string        `env:"SENDGRID_API_KEY"`
	MailFromAddress      string        `env:"MAIL_FROM_ADDRESS" envDefault:"no-reply@esg-platform.io"`
	MailFromName         string        `env:"MAIL_FROM_NAME" envDefault:"ESG Platform"`
	StoreTimeout         time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	InvitationExpiryDays int           `env:"INVITATION_EXPIRY_DAYS" envDefault:"7"`
	SweepSchedule        string        `env:"INVITATION_SWEEP_SCHEDULE"`
}

// AcceptURL is the page an invitee lands on from the invitation email
func (c *Config) AcceptURL() string {
	return c.BaseURL + "/invitations/accept"
}

// InMemory reports whether no database is configured
func (c *Config) InMemory() bool {
	return c.URL == ""
}

// Load parses the environment into a Config
func Load() (*Config, error) {
	conf := &Config{}
	if err := env.Parse(conf); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if conf.InvitationExpiryDays < 0 {
		return nil, fmt.Errorf("INVITATION_EXPIRY_DAYS must not be negative, got %d", conf.InvitationExpiryDays)
	}
	return conf, nil
}

// New sets up all config related services
func New() *Config {

	//setup zap logger and replace default logger
	logger, err := logging.New(os.Getenv("ENV"))
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)

	conf, err := Load()
	if err != nil {
		zap.S().Fatalw("invalid configuration", "error", err)
	}
	return conf
}
