package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	dateInputLayout = "01/02/2006" // MM/DD/YYYY, as typed in commands
	dateWireLayout  = "2006-01-02" // the service's date representation
)

// RejectionError is a validation failure meant for the command's sender, not
// the operator. Its reason is rendered verbatim into the reply.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

func reject(format string, args ...any) *RejectionError {
	return &RejectionError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the supplied arguments against the endpoint's schema and
// the action's grammar and, on success, returns the service-ready payload.
// Arguments are keyed by property name (any case); values are the raw strings
// from the command.
func (r *Registry) Validate(endpointName, action string, args map[string]string) (*FormattedPayload, error) {
	ep, ok := r.Endpoint(endpointName)
	if !ok {
		return nil, reject("%s is not a known endpoint", endpointName)
	}
	cmd, ok := ep.Commands[strings.ToLower(action)]
	if !ok {
		return nil, reject("%s is not an action of %s", action, ep.Name)
	}

	properties := make(map[string]any, len(args))
	supplied := make(map[string]bool, len(args))
	for name, raw := range args {
		prop, ok := ep.Properties[strings.ToLower(name)]
		if !ok {
			return nil, reject("%s is not a property of %s", name, ep.Name)
		}
		value, err := coerce(prop, raw)
		if err != nil {
			return nil, err
		}
		properties[prop.Name] = value
		supplied[strings.ToLower(name)] = true
	}

	for _, required := range cmd.Required {
		if !supplied[strings.ToLower(required)] {
			return nil, reject("missing required property %s", required)
		}
	}

	return &FormattedPayload{EndpointID: ep.ID, Properties: properties}, nil
}

// FormattedPayload is the validated, typed create request for one endpoint.
type FormattedPayload struct {
	EndpointID string
	Properties map[string]any
}

func coerce(prop Property, raw string) (any, error) {
	switch prop.Kind {
	case KindNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, reject("%s expects a number, got %q", prop.Name, raw)
		}
		return map[string]any{"number": f}, nil

	case KindTitle:
		return map[string]any{"title": richText(raw)}, nil

	case KindText:
		return map[string]any{"rich_text": richText(raw)}, nil

	case KindSelect, KindStatus:
		display, ok := prop.Options[strings.ToLower(raw)]
		if !ok {
			return nil, reject("%q is not an option of %s", raw, prop.Name)
		}
		key := "select"
		if prop.Kind == KindStatus {
			key = "status"
		}
		return map[string]any{key: map[string]any{"name": display}}, nil

	case KindDate:
		return coerceDate(prop, raw)

	default:
		return nil, reject("%s has an unsupported type", prop.Name)
	}
}

func richText(s string) []any {
	return []any{
		map[string]any{"text": map[string]any{"content": s}},
	}
}

// coerceDate accepts MM/DD/YYYY or a MM/DD/YYYY-MM/DD/YYYY range and reformats
// to the service's ISO representation.
func coerceDate(prop Property, raw string) (any, error) {
	parts := strings.Split(raw, "-")
	switch len(parts) {
	case 1:
		start, err := time.Parse(dateInputLayout, parts[0])
		if err != nil {
			return nil, reject("%s expects MM/DD/YYYY, got %q", prop.Name, raw)
		}
		return map[string]any{"date": map[string]any{"start": start.Format(dateWireLayout)}}, nil

	case 2:
		start, err1 := time.Parse(dateInputLayout, parts[0])
		end, err2 := time.Parse(dateInputLayout, parts[1])
		if err1 != nil || err2 != nil {
			return nil, reject("%s expects MM/DD/YYYY or MM/DD/YYYY-MM/DD/YYYY, got %q", prop.Name, raw)
		}
		return map[string]any{"date": map[string]any{
			"start": start.Format(dateWireLayout),
			"end":   end.Format(dateWireLayout),
		}}, nil

	default:
		return nil, reject("%s expects MM/DD/YYYY or MM/DD/YYYY-MM/DD/YYYY, got %q", prop.Name, raw)
	}
}
