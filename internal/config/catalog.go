package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the endpoint catalog document, read once at startup. It names
// the external data collections commands may target and, per action, which
// properties are required positionally and which are optional flags.
type Catalog struct {
	Endpoints map[string]CatalogEndpoint `yaml:"endpoints"`
}

type CatalogEndpoint struct {
	Type        string                    `yaml:"type"` // datasource | block
	ID          string                    `yaml:"id"`
	Description string                    `yaml:"description"`
	Commands    map[string]CatalogCommand `yaml:"commands"`
}

type CatalogCommand struct {
	// Required property names, in the order positional arguments fill them.
	Required []string `yaml:"required"`
	// Optional maps a flag (without the leading dash) to a property name.
	Optional map[string]string `yaml:"optional"`
	// Defaults maps a property name to a raw default value applied when the
	// user supplied nothing. "!today" resolves to the current date.
	Defaults map[string]string `yaml:"defaults"`
}

// LoadCatalog reads and validates the endpoint catalog YAML.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("cannot read endpoint catalog %s: %w", path, err)
	}

	// Same ${VAR} substitution as the main config, so datasource ids can
	// live in the environment.
	data = []byte(ExpandEnvVars(string(data)))

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("cannot parse endpoint catalog %s: %w", path, err)
	}

	if err := validateCatalog(&cat); err != nil {
		return nil, fmt.Errorf("endpoint catalog %s: %w", path, err)
	}
	return &cat, nil
}

func validateCatalog(cat *Catalog) error {
	if len(cat.Endpoints) == 0 {
		return fmt.Errorf("no endpoints defined")
	}

	var errs []string
	for name, ep := range cat.Endpoints {
		switch ep.Type {
		case "datasource", "block":
			// valid
		default:
			errs = append(errs, fmt.Sprintf("endpoint %s: type must be datasource or block", name))
		}
		if ep.Type == "datasource" && ep.ID == "" {
			errs = append(errs, fmt.Sprintf("endpoint %s: id is required for datasources", name))
		}
		for action, cmd := range ep.Commands {
			known := make(map[string]bool, len(cmd.Required)+len(cmd.Optional))
			for _, prop := range cmd.Required {
				known[strings.ToLower(prop)] = true
			}
			for flag, prop := range cmd.Optional {
				if flag == "" || prop == "" {
					errs = append(errs, fmt.Sprintf("endpoint %s: action %s has an empty optional flag mapping", name, action))
					continue
				}
				known[strings.ToLower(prop)] = true
			}
			for prop := range cmd.Defaults {
				if !known[strings.ToLower(prop)] {
					errs = append(errs, fmt.Sprintf("endpoint %s: action %s has a default for unknown property %s", name, action, prop))
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("catalog validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
