// Package featureflags evaluates runtime switches configured through FEATURE_FLAGS.
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Assistant gates the AI chat. It defaults to on.
const Assistant = "assistant"

// Defaults applied to flags absent from the configuration.
var Defaults = map[string]bool{
	Assistant: true,
}

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "assistant=off,new_feed=25%"
type Manager struct {
	flags    map[string]string
	defaults map[string]bool
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := normalize(parts[0])
		value := normalize(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out, defaults: Defaults}
}

// Enabled returns whether a flag is enabled for subject (session user or client IP).
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic rollout by subject, e.g. 25%)
//
// Unconfigured flags fall back to Defaults.
func (m *Manager) Enabled(name, subject string) bool {
	if m == nil {
		return Defaults[normalize(name)]
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return m.defaults[normalize(name)]
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if strings.HasSuffix(value, "%") {
		pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
		if err != nil || pct <= 0 {
			return false
		}
		if pct >= 100 {
			return true
		}
		if subject == "" {
			return false
		}
		return rolloutBucket(name, subject) < pct
	}

	return false
}

// Snapshot returns evaluated flag status for one subject, defaults included.
func (m *Manager) Snapshot(subject string) map[string]bool {
	out := make(map[string]bool, len(m.flags)+len(m.defaults))
	for name := range m.defaults {
		out[name] = m.Enabled(name, subject)
	}
	for name := range m.flags {
		out[name] = m.Enabled(name, subject)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name, subject string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + subject))
	return int(h.Sum32() % 100)
}
