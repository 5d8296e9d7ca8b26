package directive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bindweld/bindweld/pkg/policy"
)

// ParseError points at the offending line of a directive file.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// ParseFile reads and parses a directive file from disk.
func ParseFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open directive file: %w", err)
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse reads a directive file. The format is line-oriented:
//
//	# comment
//	include "zoo.h"
//	name "zoo"
//	safety trusted
//	generate "zoo::Goat"
//	generate_pod "zoo::Point"
//	generate_ns "zoo::sounds"
//	block "zoo::detail::Arena"
//	concrete "std::vector<zoo::Goat>" as "GoatVec"
//	extern_type "base::Time"
//
// Directive order is irrelevant except that include order is preserved
// (header inclusion is order-sensitive in C++).
func Parse(r io.Reader, path string) (*Config, error) {
	cfg := &Config{
		ModName: DefaultModName,
		Safety:  policy.PerCallUnsafe,
	}
	var safetySeen, nameSeen bool

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		word, rest := splitDirective(line)
		fail := func(format string, args ...any) error {
			return &ParseError{File: path, Line: lineNo, Msg: fmt.Sprintf(format, args...)}
		}

		switch word {
		case "include":
			arg, err := oneQuoted(rest)
			if err != nil {
				return nil, fail("include: %v", err)
			}
			cfg.Includes = append(cfg.Includes, arg)

		case "name":
			arg, err := oneQuoted(rest)
			if err != nil {
				return nil, fail("name: %v", err)
			}
			if nameSeen {
				return nil, fail("name declared more than once")
			}
			nameSeen = true
			cfg.ModName = arg

		case "safety":
			if safetySeen {
				return nil, fail("safety declared more than once")
			}
			safetySeen = true
			p, err := policy.Parse(strings.TrimSpace(rest))
			if err != nil {
				return nil, fail("%v", err)
			}
			cfg.Safety = p

		case "generate":
			arg, err := oneQuoted(rest)
			if err != nil {
				return nil, fail("generate: %v", err)
			}
			cfg.Generate = append(cfg.Generate, arg)

		case "generate_pod":
			arg, err := oneQuoted(rest)
			if err != nil {
				return nil, fail("generate_pod: %v", err)
			}
			cfg.GeneratePOD = append(cfg.GeneratePOD, arg)

		case "generate_ns":
			arg, err := oneQuoted(rest)
			if err != nil {
				return nil, fail("generate_ns: %v", err)
			}
			cfg.GenerateNS = append(cfg.GenerateNS, arg)

		case "generate_all":
			if rest != "" {
				return nil, fail("generate_all takes no argument")
			}
			cfg.GenerateAll = true

		case "block":
			arg, err := oneQuoted(rest)
			if err != nil {
				return nil, fail("block: %v", err)
			}
			cfg.Block = append(cfg.Block, arg)

		case "block_constructors":
			arg, err := oneQuoted(rest)
			if err != nil {
				return nil, fail("block_constructors: %v", err)
			}
			cfg.BlockConstructors = append(cfg.BlockConstructors, arg)

		case "instantiable":
			arg, err := oneQuoted(rest)
			if err != nil {
				return nil, fail("instantiable: %v", err)
			}
			cfg.Instantiable = append(cfg.Instantiable, arg)

		case "concrete":
			cppType, alias, err := quotedAsQuoted(rest)
			if err != nil {
				return nil, fail("concrete: %v", err)
			}
			cfg.Concretes = append(cfg.Concretes, ConcreteAlias{CppType: cppType, FlatName: alias})

		case "extern_type":
			arg, err := oneQuoted(rest)
			if err != nil {
				return nil, fail("extern_type: %v", err)
			}
			cfg.ExternTypes = append(cfg.ExternTypes, ExternType{Name: arg})

		case "extern_opaque_type":
			arg, err := oneQuoted(rest)
			if err != nil {
				return nil, fail("extern_opaque_type: %v", err)
			}
			cfg.ExternTypes = append(cfg.ExternTypes, ExternType{Name: arg, Opaque: true})

		case "subclass":
			arg, err := oneQuoted(rest)
			if err != nil {
				return nil, fail("subclass: %v", err)
			}
			cfg.Subclasses = append(cfg.Subclasses, arg)

		case "exclude_utilities":
			if rest != "" {
				return nil, fail("exclude_utilities takes no argument")
			}
			cfg.ExcludeUtilities = true

		case "parse_only":
			if rest != "" {
				return nil, fail("parse_only takes no argument")
			}
			cfg.ParseOnly = true

		default:
			return nil, fail("unknown directive %q", word)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read directive file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitDirective(line string) (word, rest string) {
	if idx := strings.IndexAny(line, " \t"); idx >= 0 {
		return line[:idx], strings.TrimSpace(line[idx+1:])
	}
	return line, ""
}

// oneQuoted parses a single double-quoted argument.
func oneQuoted(rest string) (string, error) {
	arg, remainder, err := takeQuoted(rest)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(remainder) != "" {
		return "", fmt.Errorf("unexpected trailing content %q", strings.TrimSpace(remainder))
	}
	return arg, nil
}

// quotedAsQuoted parses the `"cpp type" as "FlatName"` form.
func quotedAsQuoted(rest string) (string, string, error) {
	first, remainder, err := takeQuoted(rest)
	if err != nil {
		return "", "", err
	}
	remainder = strings.TrimSpace(remainder)
	if !strings.HasPrefix(remainder, "as") {
		return "", "", fmt.Errorf("expected `as \"Name\"` after %q", first)
	}
	second, tail, err := takeQuoted(strings.TrimSpace(strings.TrimPrefix(remainder, "as")))
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(tail) != "" {
		return "", "", fmt.Errorf("unexpected trailing content %q", strings.TrimSpace(tail))
	}
	return first, second, nil
}

// takeQuoted consumes one leading double-quoted string, honoring Go
// escape rules, and returns it with the unconsumed remainder.
func takeQuoted(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, `"`) {
		return "", "", fmt.Errorf("expected a quoted argument, got %q", s)
	}
	for i := 1; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == '"' {
			arg, err := strconv.Unquote(s[:i+1])
			if err != nil {
				return "", "", fmt.Errorf("malformed quoted argument: %w", err)
			}
			if arg == "" {
				return "", "", fmt.Errorf("empty argument")
			}
			return arg, s[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("unterminated quoted argument")
}
