package domain

import (
	"strings"
	"time"
)

// ModuleConfig is the tenant-side mirror of the modules enabled by the control plane.
// A tenant instance holds at most one.
type ModuleConfig struct {
	EnabledModules []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NormalizeModules trims names, drops empties and duplicates, and keeps the
// first-seen order. The result is never nil.
func NormalizeModules(modules []string) []string {
	out := make([]string, 0, len(modules))
	seen := make(map[string]struct{}, len(modules))
	for _, m := range modules {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
