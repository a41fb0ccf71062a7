// Package schema holds the endpoint registry: the catalog's command grammar
// joined against the live property schema of the structured-data service,
// validated once at startup and read-only afterwards.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"mailbot/internal/config"
	"mailbot/internal/domain"
)

// PropertyKind is the closed set of property types commands can populate.
// Anything the live schema reports outside this set is rejected at load time;
// the registry does not guess.
type PropertyKind int

const (
	KindNumber PropertyKind = iota
	KindText
	KindTitle
	KindSelect
	KindStatus
	KindDate
)

func kindOf(serviceType string) (PropertyKind, bool) {
	switch serviceType {
	case "number":
		return KindNumber, true
	case "rich_text":
		return KindText, true
	case "title":
		return KindTitle, true
	case "select":
		return KindSelect, true
	case "status":
		return KindStatus, true
	case "date":
		return KindDate, true
	default:
		return 0, false
	}
}

// Property is one validated, typed property of an endpoint.
type Property struct {
	Name    string // display name, preserved for payload formatting
	ID      string
	Kind    PropertyKind
	Options map[string]string // lowercased option -> display option; select/status only
}

// Command is one action's argument grammar.
type Command struct {
	Required []string          // property names filled positionally, in order
	Optional map[string]string // flag -> property name
	Defaults map[string]string // property name -> raw default value
}

// Endpoint is one named external data collection with its schema and grammar.
type Endpoint struct {
	Name        string
	ID          string
	Type        string // datasource | block
	Description string
	Properties  map[string]Property // lowercased property name -> property
	Commands    map[string]Command  // action name -> grammar
}

// Actions returns the endpoint's action names, sorted for stable matching
// and help output.
func (e *Endpoint) Actions() []string {
	names := make([]string, 0, len(e.Commands))
	for name := range e.Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry exposes the loaded endpoints. It is immutable after Load; a
// catalog change requires a restart.
type Registry struct {
	endpoints map[string]*Endpoint // lowercased endpoint name
	names     []string             // sorted display names
}

// Load builds the registry: for every datasource endpoint it fetches the live
// property definitions and intersects them with the catalog's required and
// optional property names. A configured property missing from the live
// schema, or carrying an unsupported type, is a fatal configuration error.
func Load(ctx context.Context, cat *config.Catalog, svc domain.RecordService, logger *slog.Logger) (*Registry, error) {
	reg := &Registry{endpoints: make(map[string]*Endpoint, len(cat.Endpoints))}

	for name, cfgEP := range cat.Endpoints {
		ep := &Endpoint{
			Name:        name,
			ID:          cfgEP.ID,
			Type:        cfgEP.Type,
			Description: cfgEP.Description,
			Properties:  make(map[string]Property),
			Commands:    make(map[string]Command, len(cfgEP.Commands)),
		}
		for action, cmd := range cfgEP.Commands {
			ep.Commands[strings.ToLower(action)] = Command{
				Required: cmd.Required,
				Optional: cmd.Optional,
				Defaults: cmd.Defaults,
			}
		}

		if cfgEP.Type == "datasource" {
			if err := loadProperties(ctx, svc, ep, logger); err != nil {
				return nil, fmt.Errorf("endpoint %s: %w", name, err)
			}
		}

		reg.endpoints[strings.ToLower(name)] = ep
		reg.names = append(reg.names, name)
	}

	sort.Strings(reg.names)
	logger.Info("endpoint registry loaded", "endpoints", len(reg.endpoints))
	return reg, nil
}

func loadProperties(ctx context.Context, svc domain.RecordService, ep *Endpoint, logger *slog.Logger) error {
	live, err := svc.FetchSchema(ctx, ep.ID)
	if err != nil {
		return fmt.Errorf("fetch schema: %w", err)
	}
	if ep.Description == "" {
		ep.Description = live.Description
	}

	liveByName := make(map[string]domain.LiveProperty, len(live.Properties))
	for _, p := range live.Properties {
		liveByName[strings.ToLower(p.Name)] = p
	}

	// Intersect: only properties the catalog names become part of the
	// endpoint, and every configured name must exist in the live schema.
	for _, cmd := range ep.Commands {
		configured := make([]string, 0, len(cmd.Required)+len(cmd.Optional))
		configured = append(configured, cmd.Required...)
		for _, prop := range cmd.Optional {
			configured = append(configured, prop)
		}

		for _, name := range configured {
			key := strings.ToLower(name)
			if _, done := ep.Properties[key]; done {
				continue
			}
			lp, ok := liveByName[key]
			if !ok {
				return fmt.Errorf("configured property %q is absent from the live schema", name)
			}
			kind, ok := kindOf(lp.Type)
			if !ok {
				return fmt.Errorf("property %q has unsupported type %q", lp.Name, lp.Type)
			}

			prop := Property{Name: lp.Name, ID: lp.ID, Kind: kind}
			if kind == KindSelect || kind == KindStatus {
				prop.Options = make(map[string]string, len(lp.Options))
				for _, opt := range lp.Options {
					prop.Options[strings.ToLower(opt.Name)] = opt.Name
				}
			}
			ep.Properties[key] = prop
			logger.Debug("registered property", "endpoint", ep.Name, "property", lp.Name, "type", lp.Type)
		}
	}
	return nil
}

// Names returns the endpoint display names, sorted.
func (r *Registry) Names() []string { return r.names }

// Endpoint looks up an endpoint by name, case-insensitively.
func (r *Registry) Endpoint(name string) (*Endpoint, bool) {
	ep, ok := r.endpoints[strings.ToLower(name)]
	return ep, ok
}
