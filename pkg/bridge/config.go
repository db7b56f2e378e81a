package bridge

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config is the environment configuration surface, read once at process
// start. Clients come either from a yaml registry file or from the single
// OAUTH_CLIENT_ID/OAUTH_CLIENT_SECRET pair.
type Config struct {
	BotToken          string        `env:"TELEGRAM_BOT_TOKEN" validate:"required"`
	BotID             string        `env:"TELEGRAM_BOT_ID" validate:"required"`
	ClientID          string        `env:"OAUTH_CLIENT_ID"`
	ClientSecret      string        `env:"OAUTH_CLIENT_SECRET"`
	RedirectURIs      []string      `env:"OAUTH_REDIRECT_URIS"`
	ClientsFile       string        `env:"CLIENTS_FILE"`
	AuthentikURL      string        `env:"AUTHENTIK_URL"`
	AuthentikAPIToken string        `env:"AUTHENTIK_API_TOKEN"`
	ListenAddr        string        `env:"LISTEN_ADDR" envDefault:":8080"`
	SessionRetention  time.Duration `env:"SESSION_RETENTION" envDefault:"24h"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
}

func ConfigFromEnv() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}

	if cfg.ClientsFile == "" && (cfg.ClientID == "" || cfg.ClientSecret == "") {
		return nil, fmt.Errorf("either CLIENTS_FILE or OAUTH_CLIENT_ID/OAUTH_CLIENT_SECRET must be set")
	}

	return cfg, nil
}

// ClientsRegistry builds the client registry from the configuration.
func (c *Config) ClientsRegistry() (ClientsRegistry, error) {
	if c.ClientsFile != "" {
		return LoadClientsRegistry(c.ClientsFile)
	}
	return &StaticClientsRegistry{
		Clients: []ClientMetadata{{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURIs: c.RedirectURIs,
		}},
	}, nil
}
