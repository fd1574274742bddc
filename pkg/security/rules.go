package security

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Rule flags submission content that must be access-restricted. Field
// names one of the scraped occurrence attributes; Pattern is a regular
// expression matched against its value.
type Rule struct {
	Name     string `yaml:"name" json:"name"`
	Field    string `yaml:"field" json:"field"`
	Pattern  string `yaml:"pattern" json:"pattern"`
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Severity string `yaml:"severity" json:"severity"`
}

type RulesConfig struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

// LoadRules reads classification rules from a YAML file, falling back
// to the defaults when no path is configured.
func LoadRules(path string) (RulesConfig, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRules(), err
	}

	var cfg RulesConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return RulesConfig{}, err
	}

	if len(cfg.Rules) == 0 {
		return RulesConfig{}, errors.New("no security rules configured")
	}

	return cfg, nil
}

// DefaultRules restricts taxa whose occurrence data is sensitive by
// provincial policy when no deployment-specific rule file is supplied.
func DefaultRules() RulesConfig {
	return RulesConfig{Rules: []Rule{
		{Name: "Northern Goshawk", Field: "taxon_id", Pattern: `(?i)^accipiter gentilis`, Enabled: true, Severity: "high"},
		{Name: "Spotted Owl", Field: "taxon_id", Pattern: `(?i)^strix occidentalis`, Enabled: true, Severity: "high"},
		{Name: "Denning site keyword", Field: "vernacular_name", Pattern: `(?i)den|roost|nest`, Enabled: true, Severity: "medium"},
	}}
}

// ServiceClientConfig is the explicitly constructed replacement for
// the old process-global service-account cache. It is built from
// configuration in main and injected where service-client
// authorization is decided.
type ServiceClientConfig struct {
	clientIDs map[string]struct{}
}

func NewServiceClientConfig(clientIDs []string) *ServiceClientConfig {
	set := make(map[string]struct{}, len(clientIDs))
	for _, id := range clientIDs {
		set[id] = struct{}{}
	}
	return &ServiceClientConfig{clientIDs: set}
}

func (c *ServiceClientConfig) IsServiceClient(id string) bool {
	_, ok := c.clientIDs[id]
	return ok
}
