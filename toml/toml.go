// Package toml loads CLI defaults from a TOML configuration file.
//
// Keys are flag names, either as written on the command line or in
// snake_case. Flags of a subcommand may also be set in a table named after
// the command:
//
//	db = "~/.idedocs/idedocs.db"
//	provider = "anthropic"
//
//	[ingest]
//	max-depth = 2
//	rate-limit = "250ms"
package toml

import (
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/idedocs"
	"github.com/pelletier/go-toml/v2"
)

// Loader is a kong.ConfigurationLoader for TOML files.
func Loader(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := toml.NewDecoder(r).Decode(&values); err != nil {
		return nil, idedocs.Errorf(idedocs.ECONFIG, "parse config: %v", err)
	}
	return &resolver{values: values}, nil
}

var _ kong.Resolver = (*resolver)(nil)

type resolver struct {
	values map[string]any
}

func (r *resolver) Validate(*kong.Application) error { return nil }

func (r *resolver) Resolve(_ *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
	if parent != nil && parent.Command != nil {
		if table, ok := r.values[parent.Command.Name].(map[string]any); ok {
			if v, ok := lookup(table, flag.Name); ok {
				return normalize(v), nil
			}
		}
	}
	if v, ok := lookup(r.values, flag.Name); ok {
		if _, isTable := v.(map[string]any); !isTable {
			return normalize(v), nil
		}
	}
	return nil, nil
}

func lookup(values map[string]any, name string) (any, bool) {
	if v, ok := values[name]; ok {
		return v, true
	}
	v, ok := values[strings.ReplaceAll(name, "-", "_")]
	return v, ok
}

// normalize converts TOML arrays to the string slices kong expects for
// slice flags.
func normalize(v any) any {
	arr, ok := v.([]any)
	if !ok {
		return v
	}
	parts := make([]string, 0, len(arr))
	for _, e := range arr {
		s, ok := e.(string)
		if !ok {
			return v
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ",")
}
