package main

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/exoplanet-explorer/backend/shared/config"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNoCredentials   = errors.New("no credentials available")
)

// Provider is one upstream chat-completion service: an OpenAI-compatible
// endpoint, the models we may route to, and the API keys we may use.
type Provider struct {
	Name        string
	BaseURL     string
	Models      []string
	Credentials []string
}

// Registry is the static provider catalog. Loaded once at startup and
// read-only afterwards; credentials are never rotated within a run.
type Registry struct {
	providers map[string]*Provider
	names     []string
}

type providerYAML struct {
	BaseURL string   `yaml:"base_url"`
	EnvKey  string   `yaml:"env_key"`
	Models  []string `yaml:"models"`
	Keys    []string `yaml:"keys"`
}

type registryYAML struct {
	Providers map[string]providerYAML `yaml:"providers"`
}

// LoadRegistry reads the provider catalog from a YAML file. Keys listed in
// the file are merged with the provider's env var (comma-separated), so
// deployments never have to commit credentials.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}

	var file registryYAML
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}

	providers := make(map[string]*Provider, len(file.Providers))
	for name, p := range file.Providers {
		creds := append([]string{}, p.Keys...)
		if p.EnvKey != "" {
			creds = append(creds, config.GetEnvSlice(p.EnvKey, nil)...)
		}
		providers[name] = &Provider{
			Name:        name,
			BaseURL:     p.BaseURL,
			Models:      p.Models,
			Credentials: creds,
		}
	}

	reg := &Registry{providers: providers}
	for name := range providers {
		reg.names = append(reg.names, name)
	}
	sort.Strings(reg.names)

	if err := reg.validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// NewRegistry builds a registry directly from providers; used by tests and
// by callers that assemble the catalog programmatically.
func NewRegistry(providers ...*Provider) (*Registry, error) {
	reg := &Registry{providers: make(map[string]*Provider, len(providers))}
	for _, p := range providers {
		reg.providers[p.Name] = p
		reg.names = append(reg.names, p.Name)
	}
	sort.Strings(reg.names)

	if err := reg.validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *Registry) validate() error {
	if len(r.providers) == 0 {
		return fmt.Errorf("registry is empty")
	}
	for name, p := range r.providers {
		if p.BaseURL == "" {
			return fmt.Errorf("provider %s: missing base_url", name)
		}
		if len(p.Models) == 0 {
			return fmt.Errorf("provider %s: no models configured", name)
		}
	}
	return nil
}

// Names returns provider names in sorted order for deterministic iteration.
func (r *Registry) Names() []string {
	return r.names
}

// Provider looks up a provider by name.
func (r *Registry) Provider(name string) (*Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// SelectCredential picks a random credential for the named provider. With an
// empty name it picks uniformly over the flattened set of all
// (provider, credential) pairs. The credential is returned to the caller and
// threaded explicitly into the gateway call; nothing is published to the
// process environment.
func (r *Registry) SelectCredential(rng *rand.Rand, provider string) (string, string, error) {
	if provider != "" {
		p, err := r.Provider(provider)
		if err != nil {
			return "", "", err
		}
		if len(p.Credentials) == 0 {
			return "", "", fmt.Errorf("%w: provider %s", ErrNoCredentials, provider)
		}
		return p.Name, p.Credentials[rng.Intn(len(p.Credentials))], nil
	}

	type pair struct {
		provider   string
		credential string
	}
	var pairs []pair
	for _, name := range r.names {
		for _, cred := range r.providers[name].Credentials {
			pairs = append(pairs, pair{provider: name, credential: cred})
		}
	}
	if len(pairs) == 0 {
		return "", "", ErrNoCredentials
	}
	chosen := pairs[rng.Intn(len(pairs))]
	return chosen.provider, chosen.credential, nil
}

// PickModel selects a uniformly random provider, then a uniformly random
// model from that provider, mirroring the two-step draw of the original
// search tree.
func (r *Registry) PickModel(rng *rand.Rand) (string, string) {
	name := r.names[rng.Intn(len(r.names))]
	p := r.providers[name]
	return name, p.Models[rng.Intn(len(p.Models))]
}
