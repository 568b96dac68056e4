package provider

import (
	_ "embed"
	"fmt"
	"strings"

	"bluereach_backend/internal/reconcile"

	"gopkg.in/yaml.v3"
)

//go:embed interest_status.yaml
var interestStatusYAML []byte

// InterestMap converts provider-specific interest values into canonical
// interest statuses.
type InterestMap struct {
	byProvider map[reconcile.Provider]map[string]reconcile.InterestStatus
}

// LoadInterestMap parses the embedded mapping file.
func LoadInterestMap() (*InterestMap, error) {
	return ParseInterestMap(interestStatusYAML)
}

// ParseInterestMap parses a YAML mapping document keyed by provider name.
func ParseInterestMap(data []byte) (*InterestMap, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse interest map: %w", err)
	}

	m := &InterestMap{byProvider: make(map[reconcile.Provider]map[string]reconcile.InterestStatus, len(raw))}
	for providerName, values := range raw {
		p := reconcile.Provider(providerName)
		if !p.Valid() {
			return nil, fmt.Errorf("interest map: unknown provider %q", providerName)
		}
		mapped := make(map[string]reconcile.InterestStatus, len(values))
		for key, value := range values {
			status, ok := reconcile.ParseInterest(value)
			if !ok || status == reconcile.InterestUnknown {
				return nil, fmt.Errorf("interest map: %s value %q maps to unknown status %q", providerName, key, value)
			}
			mapped[normalizeKey(key)] = status
		}
		m.byProvider[p] = mapped
	}
	return m, nil
}

// MustLoadInterestMap is LoadInterestMap for process start-up.
func MustLoadInterestMap() *InterestMap {
	m, err := LoadInterestMap()
	if err != nil {
		panic(err)
	}
	return m
}

// Lookup returns the canonical interest for a raw provider value.
func (m *InterestMap) Lookup(p reconcile.Provider, raw string) reconcile.InterestStatus {
	if m == nil {
		return reconcile.InterestUnknown
	}
	return m.byProvider[p][normalizeKey(raw)]
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
