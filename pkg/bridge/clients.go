package bridge

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/telebridge/telebridge/pkg/oauth2"
)

// ClientMetadata describes a registered OAuth2 client of the bridge. The
// downstream identity provider acts as a confidential client.
type ClientMetadata struct {
	ClientID     string   `yaml:"client_id" json:"client_id" validate:"required"`
	ClientSecret string   `yaml:"client_secret" json:"client_secret" validate:"required"`
	RedirectURIs []string `yaml:"redirect_uris" json:"redirect_uris"`
	ClientName   string   `yaml:"client_name" json:"client_name"`
}

type ClientsRegistry interface {
	GetClientMetadata(clientID string) (*ClientMetadata, error)
}

type StaticClientsRegistry struct {
	Clients []ClientMetadata `yaml:"clients" validate:"required,dive"`
}

func (r *StaticClientsRegistry) GetClientMetadata(clientID string) (*ClientMetadata, error) {
	for i := range r.Clients {
		if r.Clients[i].ClientID == clientID {
			return &r.Clients[i], nil
		}
	}
	return nil, fmt.Errorf("client not found: '%s'", clientID)
}

func LoadClientsRegistry(path string) (*StaticClientsRegistry, error) {
	yamlData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clients file '%s': %w", path, err)
	}
	var registry StaticClientsRegistry
	if err := yaml.Unmarshal(yamlData, &registry); err != nil {
		return nil, fmt.Errorf("unmarshal clients file '%s': %w", path, err)
	}
	return &registry, nil
}

// IsAllowedRedirectURI reports whether the client may use the given redirect
// target. An empty allow-list admits any target.
func (m *ClientMetadata) IsAllowedRedirectURI(redirectURI string) bool {
	if len(m.RedirectURIs) == 0 {
		return true
	}
	for _, uri := range m.RedirectURIs {
		if uri == redirectURI {
			return true
		}
	}
	return false
}

// VerifySecret compares the presented client secret in constant time.
func (m *ClientMetadata) VerifySecret(secret string) bool {
	return secret != "" && oauth2.SecretsEqual(secret, m.ClientSecret)
}
