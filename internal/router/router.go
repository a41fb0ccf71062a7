// Package router turns command-tagged messages into structured-data service
// calls and reply strings. All malformed input is reported back to the sender
// as text; nothing here panics or escalates past the router.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mailbot/internal/domain"
	"mailbot/internal/metrics"
	"mailbot/internal/schema"
)

const (
	// Endpoint names tolerate more typo distance than action names: a wrong
	// endpoint is merely misrouted, a wrong action changes semantics.
	endpointThreshold = 80
	actionThreshold   = 85

	helpKeyword = "help"

	dateLayout = "01/02/2006"
)

// ParsedCommand is the ephemeral result of parsing one command message.
type ParsedCommand struct {
	Endpoint string
	Action   string
	Args     map[string]string // property name -> raw value
}

// Router parses, validates, and executes commands against the registry and
// the external record service.
type Router struct {
	registry *schema.Registry
	service  domain.RecordService
	matcher  domain.Matcher
	logger   *slog.Logger
	metrics  *metrics.Collector
	now      func() time.Time
}

type Config struct {
	Registry *schema.Registry
	Service  domain.RecordService
	Matcher  domain.Matcher
	Logger   *slog.Logger
	Metrics  *metrics.Collector
	Now      func() time.Time // test hook for "!today" defaults
}

func New(cfg Config) *Router {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	return &Router{
		registry: cfg.Registry,
		service:  cfg.Service,
		matcher:  cfg.Matcher,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
	}
}

// Handle processes one command-tagged message and always returns the reply
// text for the sender.
func (r *Router) Handle(ctx context.Context, content string) string {
	text := strings.TrimPrefix(strings.TrimSpace(content), "!")

	if first, rest, _ := strings.Cut(text, " "); strings.EqualFold(first, helpKeyword) {
		return r.Help(strings.Fields(rest)...)
	}

	cmd, err := r.Parse(text)
	if err != nil {
		r.logger.Info("command rejected", "reason", err.Error())
		r.metrics.Inc(metrics.CommandsRejected)
		return err.Error()
	}
	return r.Run(ctx, cmd)
}

// Parse splits the command text into endpoint, action, and arguments.
// Endpoint and action names are fuzzy-matched against the registry so
// manually typed commands tolerate typos; argument-shape problems come back
// as specific reasons.
func (r *Router) Parse(text string) (*ParsedCommand, error) {
	tokens := tokenize(text)
	if len(tokens) < 2 {
		return nil, &schema.RejectionError{Reason: "expected an endpoint and an action, e.g. !notion add"}
	}

	epName, score := r.matcher.BestMatch(tokens[0], r.registry.Names())
	if score < endpointThreshold {
		return nil, &schema.RejectionError{Reason: fmt.Sprintf("%s is not a valid command", tokens[0])}
	}
	ep, _ := r.registry.Endpoint(epName)

	action, score := r.matcher.BestMatch(tokens[1], ep.Actions())
	if score < actionThreshold {
		return nil, &schema.RejectionError{Reason: fmt.Sprintf("%s is not a valid action of %s", tokens[1], ep.Name)}
	}
	grammar := ep.Commands[action]

	args := make(map[string]string)
	positionals := 0
	rest := tokens[2:]
	for i := 0; i < len(rest); i++ {
		tok := rest[i]

		if flag, ok := strings.CutPrefix(tok, "-"); ok && flag != "" {
			prop, known := grammar.Optional[flag]
			if !known {
				return nil, &schema.RejectionError{Reason: fmt.Sprintf("-%s is not a flag of %s %s", flag, ep.Name, action)}
			}
			if _, dup := args[prop]; dup {
				return nil, &schema.RejectionError{Reason: fmt.Sprintf("duplicate flag -%s", flag)}
			}
			if i+1 >= len(rest) {
				return nil, &schema.RejectionError{Reason: fmt.Sprintf("flag -%s is missing a value", flag)}
			}
			args[prop] = rest[i+1]
			i++
			continue
		}

		if positionals >= len(grammar.Required) {
			return nil, &schema.RejectionError{
				Reason: fmt.Sprintf("%d arguments expected, %d given", len(grammar.Required), positionals+1),
			}
		}
		args[grammar.Required[positionals]] = tok
		positionals++
	}

	for prop, def := range grammar.Defaults {
		if _, ok := args[prop]; !ok {
			args[prop] = r.translateDefault(def)
		}
	}

	return &ParsedCommand{Endpoint: ep.Name, Action: action, Args: args}, nil
}

// translateDefault resolves dynamic catalog defaults; "!today" becomes the
// current date in command date syntax.
func (r *Router) translateDefault(def string) string {
	if def == "!today" {
		return r.now().Format(dateLayout)
	}
	return def
}

// Run routes a parsed command by endpoint type and returns the reply text.
func (r *Router) Run(ctx context.Context, cmd *ParsedCommand) string {
	ep, ok := r.registry.Endpoint(cmd.Endpoint)
	if !ok {
		return fmt.Sprintf("%s is not a known endpoint", cmd.Endpoint)
	}
	if ep.Type != "datasource" {
		return fmt.Sprintf("%s commands are not implemented yet", ep.Name)
	}

	switch cmd.Action {
	case "add":
		return r.runAdd(ctx, ep, cmd)
	default:
		return fmt.Sprintf("%s is not a supported action of %s", cmd.Action, ep.Name)
	}
}

func (r *Router) runAdd(ctx context.Context, ep *schema.Endpoint, cmd *ParsedCommand) string {
	payload, err := r.registry.Validate(cmd.Endpoint, cmd.Action, cmd.Args)
	if err != nil {
		var rejection *schema.RejectionError
		if errors.As(err, &rejection) {
			r.logger.Info("record rejected", "endpoint", ep.Name, "reason", rejection.Reason)
			r.metrics.Inc(metrics.CommandsRejected)
			return rejection.Reason
		}
		r.logger.Error("validation failed unexpectedly", "endpoint", ep.Name, "err", err)
		return fmt.Sprintf("could not validate the record: %s", err)
	}

	res, err := r.service.CreateRecord(ctx, domain.RecordPayload{
		EndpointID: payload.EndpointID,
		Properties: payload.Properties,
	})
	if err != nil {
		r.logger.Warn("record creation failed", "endpoint", ep.Name, "err", err)
		return fmt.Sprintf("could not reach %s: %s", ep.Name, err)
	}
	if res == nil || !res.OK {
		msg := "the service returned an empty response"
		if res != nil && res.ErrorMessage != "" {
			msg = res.ErrorMessage
		}
		r.logger.Warn("record creation rejected by service", "endpoint", ep.Name, "msg", msg)
		return fmt.Sprintf("%s rejected the record: %s", ep.Name, msg)
	}

	r.logger.Info("record created", "endpoint", ep.Name, "display", res.DisplayValue)
	return fmt.Sprintf("Added %q to %s", res.DisplayValue, ep.Name)
}

// tokenize splits command text into tokens. Newlines count as token
// separators and quoted segments stay together even across spaces.
func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	inQuote := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, ch := range text {
		switch {
		case ch == '"':
			if inQuote {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			inQuote = !inQuote
		case !inQuote && (ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'):
			flush()
		default:
			current.WriteRune(ch)
		}
	}
	flush()
	return tokens
}
