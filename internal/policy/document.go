package policy

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Document is the externally supplied policy configuration. It is loaded once
// at startup and immutable afterwards; a missing or malformed file is a fatal
// configuration error, never patched over with defaults.
type Document struct {
	PolicyName  string                `mapstructure:"policy_name"`
	Version     string                `mapstructure:"version"`
	Modes       map[string]ModePolicy `mapstructure:"modes"`
	GlobalRules GlobalRules           `mapstructure:"global_rules"`
}

// ModePolicy declares what one operational mode permits.
type ModePolicy struct {
	Description         string              `mapstructure:"description"`
	AllowedTools        []string            `mapstructure:"allowed_tools"`
	BlockedTools        []string            `mapstructure:"blocked_tools"`
	Rationale           string              `mapstructure:"rationale"`
	ServiceRestrictions ServiceRestrictions `mapstructure:"service_restrictions"`
}

// ServiceRestrictions gates mutations on observed target health when enabled.
type ServiceRestrictions struct {
	Enabled bool `mapstructure:"enabled"`
}

// GlobalRules apply in every mode and cannot be overridden.
type GlobalRules struct {
	AlwaysBlocked []string `mapstructure:"always_blocked"`
}

// NormalizeMode canonicalizes a mode name for document lookups.
func NormalizeMode(mode string) string {
	return strings.ToUpper(strings.TrimSpace(mode))
}

// LoadDocument reads and validates a policy document from a JSON file.
func LoadDocument(path string) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("policy document not found: %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read policy document: %w", err)
	}

	doc := &Document{}
	if err := v.Unmarshal(doc, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
	}); err != nil {
		return nil, fmt.Errorf("decode policy document: %w", err)
	}

	doc.normalize()
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy document %s: %w", path, err)
	}
	return doc, nil
}

func (d *Document) normalize() {
	modes := make(map[string]ModePolicy, len(d.Modes))
	for name, mp := range d.Modes {
		mp.AllowedTools = normalizeToolList(mp.AllowedTools)
		mp.BlockedTools = normalizeToolList(mp.BlockedTools)
		modes[NormalizeMode(name)] = mp
	}
	d.Modes = modes
	d.GlobalRules.AlwaysBlocked = normalizeToolList(d.GlobalRules.AlwaysBlocked)
}

func normalizeToolList(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, name := range raw {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Validate checks structural invariants: at least one mode must be declared
// and no mode may list a tool as both allowed and blocked.
func (d *Document) Validate() error {
	if len(d.Modes) == 0 {
		return fmt.Errorf("no modes declared")
	}
	for name, mp := range d.Modes {
		blocked := make(map[string]struct{}, len(mp.BlockedTools))
		for _, tool := range mp.BlockedTools {
			blocked[tool] = struct{}{}
		}
		for _, tool := range mp.AllowedTools {
			if _, clash := blocked[tool]; clash {
				return fmt.Errorf("mode %s lists %q as both allowed and blocked", name, tool)
			}
		}
	}
	return nil
}

// Mode returns the policy for a mode name, if declared.
func (d *Document) Mode(name string) (ModePolicy, bool) {
	mp, ok := d.Modes[NormalizeMode(name)]
	return mp, ok
}

// ModeNames returns the declared mode names sorted.
func (d *Document) ModeNames() []string {
	names := make([]string, 0, len(d.Modes))
	for name := range d.Modes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsAlwaysBlocked reports whether a tool is in the global block list.
func (d *Document) IsAlwaysBlocked(tool string) bool {
	tool = strings.ToLower(strings.TrimSpace(tool))
	for _, blocked := range d.GlobalRules.AlwaysBlocked {
		if blocked == tool {
			return true
		}
	}
	return false
}
