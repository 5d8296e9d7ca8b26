// Package directive parses the allowlist mini-language that drives a
// generation run: which headers to read, which symbols to bind, how to
// bind them, and under which safety policy.
package directive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/bindweld/bindweld/pkg/policy"
)

// ConcreteAlias names a concrete template instantiation so it can be
// bound as an opaque type.
type ConcreteAlias struct {
	// CppType is the instantiation as written, e.g. "std::vector<zoo::Goat>".
	CppType string
	// FlatName is the identifier the generated bindings will use.
	FlatName string
}

// ExternType declares a type generated by another bindweld invocation.
// It may be referenced but is never defined here.
type ExternType struct {
	Name   string
	Opaque bool
}

// Config is the parsed, validated form of a directive file.
type Config struct {
	// Includes are the headers handed to the extractor, in file order.
	Includes []string
	// ModName is the base name for generated artifacts. Defaults to
	// "bindings" when the file carries no name directive.
	ModName string
	Safety  policy.Policy

	// Generate are fully-typed generation requests.
	Generate []string
	// GeneratePOD are plain-old-data requests: the type must prove
	// trivially relocatable or the run fails.
	GeneratePOD []string
	// GenerateNS requests everything under a namespace.
	GenerateNS []string
	// GenerateAll requests every extracted top-level symbol.
	GenerateAll bool

	Block             []string
	BlockConstructors []string
	Instantiable      []string
	Concretes         []ConcreteAlias
	ExternTypes       []ExternType
	// Subclasses are parsed for compatibility; generation of subclass
	// support always degrades to a documented stub.
	Subclasses []string

	ExcludeUtilities bool
	ParseOnly        bool
}

// DefaultModName is used when no name directive is present.
const DefaultModName = "bindings"

// ConfigError is a fatal problem with the directive file itself, as
// opposed to a per-symbol finding. It aborts the run.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// Validate checks cross-directive consistency. Parse calls it; it is
// exported so hand-built configs in tests get the same checks.
func (c *Config) Validate() error {
	if len(c.Includes) == 0 {
		return configErrorf("directive file declares no include directive; nothing to extract")
	}

	seen := make(map[string]string)
	note := func(name, directive string) error {
		if prev, ok := seen[name]; ok {
			if prev == directive {
				return configErrorf("duplicate %s directive for %q", directive, name)
			}
			return configErrorf("%q requested by both %s and %s", name, prev, directive)
		}
		seen[name] = directive
		return nil
	}

	for _, n := range c.Generate {
		if err := note(n, "generate"); err != nil {
			return err
		}
	}
	for _, n := range c.GeneratePOD {
		if err := note(n, "generate_pod"); err != nil {
			return err
		}
	}
	for _, n := range c.Block {
		if err := note(n, "block"); err != nil {
			return err
		}
	}
	for _, et := range c.ExternTypes {
		if err := note(et.Name, "extern_type"); err != nil {
			return err
		}
	}

	flat := make(map[string]string)
	for _, ca := range c.Concretes {
		if prev, ok := flat[ca.FlatName]; ok {
			return configErrorf("concrete name %q claimed by both %q and %q", ca.FlatName, prev, ca.CppType)
		}
		flat[ca.FlatName] = ca.CppType
	}

	return nil
}

// Requested reports whether the name is allowlisted, and in which mode.
func (c *Config) Requested(qualified string) (full bool, pod bool) {
	for _, n := range c.GeneratePOD {
		if n == qualified {
			return false, true
		}
	}
	for _, n := range c.Generate {
		if n == qualified {
			return true, false
		}
	}
	if c.GenerateAll {
		return true, false
	}
	for _, ns := range c.GenerateNS {
		if strings.HasPrefix(qualified, ns+"::") {
			return true, false
		}
	}
	return false, false
}

// Blocked reports whether references to the type must stay opaque.
func (c *Config) Blocked(qualified string) bool {
	for _, n := range c.Block {
		if n == qualified {
			return true
		}
	}
	return false
}

// ConstructorsBlocked reports whether constructor synthesis is
// suppressed for the type.
func (c *Config) ConstructorsBlocked(qualified string) bool {
	for _, n := range c.BlockConstructors {
		if n == qualified {
			return true
		}
	}
	return false
}

// IsInstantiable reports whether the type was forced constructor-
// eligible despite being pulled in only as a dependency.
func (c *Config) IsInstantiable(qualified string) bool {
	for _, n := range c.Instantiable {
		if n == qualified {
			return true
		}
	}
	return false
}

// Fingerprint returns a stable hash of the configuration, independent
// of directive ordering. It feeds the extraction cache key and the
// idempotence guarantee.
func (c *Config) Fingerprint() string {
	var parts []string
	add := func(kind string, vals []string) {
		sorted := append([]string{}, vals...)
		sort.Strings(sorted)
		for _, v := range sorted {
			parts = append(parts, kind+"="+v)
		}
	}
	// Include order is semantic (C++ headers are order-sensitive), so
	// includes are hashed unsorted.
	for _, inc := range c.Includes {
		parts = append(parts, "include:"+inc)
	}
	add("generate", c.Generate)
	add("generate_pod", c.GeneratePOD)
	add("generate_ns", c.GenerateNS)
	add("block", c.Block)
	add("block_constructors", c.BlockConstructors)
	add("instantiable", c.Instantiable)
	add("subclass", c.Subclasses)
	for _, ca := range c.Concretes {
		parts = append(parts, "concrete:"+ca.CppType+"="+ca.FlatName)
	}
	for _, et := range c.ExternTypes {
		parts = append(parts, fmt.Sprintf("extern:%s:%t", et.Name, et.Opaque))
	}
	parts = append(parts,
		fmt.Sprintf("all:%t", c.GenerateAll),
		fmt.Sprintf("safety:%s", c.Safety),
		fmt.Sprintf("name:%s", c.ModName),
		fmt.Sprintf("exclude_utilities:%t", c.ExcludeUtilities),
	)
	sort.Strings(parts[len(c.Includes):])

	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
