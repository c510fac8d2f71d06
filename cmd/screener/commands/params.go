package commands

import (
	"strings"

	"github.com/wonny/screener/internal/contracts"
)

// buildParams applies profile and key=value overrides on top of base.
// Malformed overrides are returned so the caller can report them.
func buildParams(base contracts.Params, overrides []string, profile string) (contracts.Params, []string) {
	params := contracts.Merge(base, nil)
	if profile != "" {
		params["profile"] = profile
	}

	var ignored []string
	for _, override := range overrides {
		key, raw, ok := strings.Cut(override, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			ignored = append(ignored, override)
			continue
		}
		params[key] = contracts.ParseParamValue(raw)
	}
	return params, ignored
}
