package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/modelscout/modelscout/internal/infrastructure/logger"
)

// Provider is one entry of the provider directory: a configured upstream
// chat/completion or model-listing API. Read-only input to the pipeline.
type Provider struct {
	Key      string `validate:"required"`
	Vendor   string `validate:"required"`
	Enabled  bool
	APIKey   string
	Model    string
	BaseURL  string `validate:"omitempty,url"`
	Protocol string `validate:"omitempty,oneof=openai anthropic local"` // empty means per-vendor default
	Headers  map[string]string
	IsCustom bool
}

// ProviderDirectory holds the configured providers keyed by provider identifier.
type ProviderDirectory struct {
	providers map[string]Provider
	order     []string
}

// Get returns the named provider entry.
func (d *ProviderDirectory) Get(key string) (Provider, bool) {
	if d == nil {
		return Provider{}, false
	}
	p, ok := d.providers[strings.ToLower(strings.TrimSpace(key))]
	return p, ok
}

// Enabled returns the enabled providers in file order.
func (d *ProviderDirectory) Enabled() []Provider {
	if d == nil {
		return nil
	}
	result := make([]Provider, 0, len(d.order))
	for _, key := range d.order {
		if p := d.providers[key]; p.Enabled {
			result = append(result, p)
		}
	}
	return result
}

// LoadProviderDirectory parses the yaml file at the provided path.
func LoadProviderDirectory(path string) (*ProviderDirectory, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("provider config path is empty")
	}

	log := logger.GetLogger()
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read provider config %q: %w", cleanPath, err)
	}
	log.Info().Str("path", cleanPath).Msg("loading provider config file")

	return ParseProviderDirectory(data)
}

// ParseProviderDirectory parses provider directory yaml content.
func ParseProviderDirectory(data []byte) (*ProviderDirectory, error) {
	var doc providerConfigDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse provider config: %w", err)
	}

	if len(doc.Providers) == 0 {
		return nil, errors.New("provider config has no providers defined")
	}

	log := logger.GetLogger()
	result := &ProviderDirectory{providers: make(map[string]Provider, len(doc.Providers))}

	for idx, entry := range doc.Providers {
		normalized, err := normalizeProviderEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("providers[%d]: %w", idx, err)
		}
		if _, dup := result.providers[normalized.Key]; dup {
			return nil, fmt.Errorf("providers[%d]: duplicate provider key %q", idx, normalized.Key)
		}
		log.Info().
			Str("provider", normalized.Key).
			Str("vendor", normalized.Vendor).
			Bool("enabled", normalized.Enabled).
			Msg("including provider entry")
		result.providers[normalized.Key] = normalized
		result.order = append(result.order, normalized.Key)
	}

	return result, nil
}

type providerConfigDocument struct {
	Providers []providerConfigEntry `yaml:"providers"`
}

type providerConfigEntry struct {
	EnableRaw string            `yaml:"enable"`
	Key       string            `yaml:"key"`
	Name      string            `yaml:"name"`
	Vendor    string            `yaml:"vendor"`
	Type      string            `yaml:"type"`
	URL       string            `yaml:"url"`
	BaseURL   string            `yaml:"base_url"`
	APIKey    string            `yaml:"api_key"`
	Model     string            `yaml:"model"`
	Protocol  string            `yaml:"protocol"`
	Headers   map[string]string `yaml:"headers"`
	Custom    bool              `yaml:"custom"`
}

func normalizeProviderEntry(entry providerConfigEntry) (Provider, error) {
	enabled, err := parseEnabled(entry.EnableRaw)
	if err != nil {
		return Provider{}, err
	}

	vendor := strings.ToLower(strings.TrimSpace(firstNonEmpty(entry.Vendor, entry.Type)))

	key := strings.ToLower(strings.TrimSpace(firstNonEmpty(entry.Key, entry.Name)))
	if key == "" {
		key = vendor
	}

	baseURL := strings.TrimSpace(os.ExpandEnv(firstNonEmpty(entry.URL, entry.BaseURL)))
	apiKey := strings.TrimSpace(entry.APIKey)
	if apiKey != "" {
		apiKey = os.ExpandEnv(apiKey)
	}

	headers := cloneStringMap(entry.Headers)

	provider := Provider{
		Key:      key,
		Vendor:   vendor,
		Enabled:  enabled,
		APIKey:   apiKey,
		Model:    strings.TrimSpace(entry.Model),
		BaseURL:  baseURL,
		Protocol: strings.ToLower(strings.TrimSpace(entry.Protocol)),
		Headers:  headers,
		IsCustom: entry.Custom,
	}
	if err := validate.Struct(provider); err != nil {
		return Provider{}, fmt.Errorf("invalid provider entry: %w", err)
	}
	return provider, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func cloneStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(os.ExpandEnv(v))
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseEnabled(raw string) (bool, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return true, nil
	}

	resolved := strings.TrimSpace(expandWithDefault(value))
	if resolved == "" {
		return true, nil
	}

	parsed, err := strconv.ParseBool(resolved)
	if err != nil {
		return false, fmt.Errorf("enable: %w", err)
	}
	return parsed, nil
}

// expandWithDefault expands ${VAR} and ${VAR:-default} syntax using os envs.
func expandWithDefault(raw string) string {
	if !strings.Contains(raw, "${") {
		return os.ExpandEnv(raw)
	}
	start := strings.Index(raw, "${")
	end := strings.Index(raw[start:], "}")
	if start == -1 || end == -1 {
		return os.ExpandEnv(raw)
	}
	end = start + end
	expr := raw[start+2 : end]
	defaultVal := ""
	varName := expr
	if strings.Contains(expr, ":-") {
		parts := strings.SplitN(expr, ":-", 2)
		varName = parts[0]
		defaultVal = parts[1]
	}
	val := os.Getenv(varName)
	if val == "" {
		val = defaultVal
	}
	resolved := raw[:start] + val + raw[end+1:]
	return os.ExpandEnv(resolved)
}
