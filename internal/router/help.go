package router

import (
	"fmt"
	"sort"
	"strings"
)

// Help renders command documentation from the registry's static
// configuration. It has no side effects: "help info" lists endpoints with
// descriptions, "help syntax [endpoint]" lists the command grammar, with the
// endpoint filter fuzzy-matched like any other endpoint name.
func (r *Router) Help(args ...string) string {
	kind := "info"
	if len(args) > 0 {
		kind = strings.ToLower(args[0])
	}

	switch kind {
	case "info":
		return r.helpInfo()
	case "syntax":
		filter := ""
		if len(args) > 1 {
			filter = args[1]
		}
		return r.helpSyntax(filter)
	default:
		return fmt.Sprintf("%s is not a help topic; try \"!help info\" or \"!help syntax\"", kind)
	}
}

func (r *Router) helpInfo() string {
	var b strings.Builder
	b.WriteString("Known endpoints:\n")
	for _, name := range r.registry.Names() {
		ep, _ := r.registry.Endpoint(name)
		desc := ep.Description
		if desc == "" {
			desc = "(no description)"
		}
		fmt.Fprintf(&b, "  %s - %s\n", ep.Name, desc)
	}
	b.WriteString("Use \"!help syntax\" for command grammar.")
	return b.String()
}

func (r *Router) helpSyntax(filter string) string {
	names := r.registry.Names()
	if filter != "" {
		match, score := r.matcher.BestMatch(filter, names)
		if score < endpointThreshold {
			return fmt.Sprintf("%s is not a known endpoint", filter)
		}
		names = []string{match}
	}

	var b strings.Builder
	b.WriteString("Command syntax:\n")
	for _, name := range names {
		ep, _ := r.registry.Endpoint(name)
		for _, action := range ep.Actions() {
			grammar := ep.Commands[action]
			fmt.Fprintf(&b, "  !%s %s", ep.Name, action)
			for _, req := range grammar.Required {
				fmt.Fprintf(&b, " <%s>", req)
			}
			flags := make([]string, 0, len(grammar.Optional))
			for flag := range grammar.Optional {
				flags = append(flags, flag)
			}
			sort.Strings(flags)
			for _, flag := range flags {
				fmt.Fprintf(&b, " [-%s %s]", flag, grammar.Optional[flag])
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("Quote multi-word values: \"like this\".")
	return b.String()
}
