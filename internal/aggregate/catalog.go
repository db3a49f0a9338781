package aggregate

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/evhart/bivouac/pkg/domain"
)

// catalogFile is the YAML shape of the modifier catalog:
//
//	modifiers:
//	  - key: cold
//	    label: Biting Cold
//	    bonus: -2
type catalogFile struct {
	Modifiers []domain.Modifier `yaml:"modifiers"`
}

// ParseCatalog decodes a modifier catalog from YAML. Duplicate keys are a
// configuration error, not a last-one-wins surprise.
func ParseCatalog(data []byte) (domain.ModifierCatalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse modifier catalog: %w", err)
	}

	catalog := make(domain.ModifierCatalog, len(file.Modifiers))
	for _, m := range file.Modifiers {
		if m.Key == "" {
			return nil, fmt.Errorf("modifier catalog: entry %q has no key", m.Label)
		}
		if _, dup := catalog[m.Key]; dup {
			return nil, fmt.Errorf("modifier catalog: duplicate key %q", m.Key)
		}
		catalog[m.Key] = m
	}
	return catalog, nil
}
