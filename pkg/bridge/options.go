package bridge

import (
	"fmt"
	"time"
)

type Option func(*Server) error

func New(opts ...Option) (*Server, error) {
	s := &Server{
		store:          NewMemorySessionStore(),
		accessTokenTTL: 3600 * time.Second,
		callbackPath:   "/callback",
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if s.clients == nil {
		return nil, fmt.Errorf("clients registry is required")
	}

	return s, nil
}

// WithBotCredentials sets the shared widget secret and the bot identifier
// shown to the widget.
func WithBotCredentials(botToken, botID string) Option {
	return func(s *Server) error {
		s.botToken = botToken
		s.botID = botID
		return nil
	}
}

func WithClientsRegistry(clients ClientsRegistry) Option {
	return func(s *Server) error {
		s.clients = clients
		return nil
	}
}

// WithClient registers a single static OAuth2 client.
func WithClient(client ClientMetadata) Option {
	return func(s *Server) error {
		s.clients = &StaticClientsRegistry{Clients: []ClientMetadata{client}}
		return nil
	}
}

func WithSessionStore(store SessionStore) Option {
	return func(s *Server) error {
		s.store = store
		return nil
	}
}

// WithIdentityProvider wires the downstream identity-provider API used to
// provision users at login time. Without it the bridge runs standalone.
func WithIdentityProvider(idp IdentityProvider) Option {
	return func(s *Server) error {
		s.idp = idp
		return nil
	}
}

func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(s *Server) error {
		if ttl <= 0 {
			return fmt.Errorf("access token TTL must be positive")
		}
		s.accessTokenTTL = ttl
		return nil
	}
}
