// Package policy models the caller-facing safety contract of generated
// entry points. The policy never changes what is generated, only
// whether each entry point demands an explicit acknowledgement token.
package policy

import "fmt"

// Policy selects how generated entry points are gated.
type Policy int

const (
	// PerCallUnsafe requires every generated entry point to take an
	// explicit Unsafe token, acknowledging risk at each call site.
	// This is the default.
	PerCallUnsafe Policy = iota
	// TrustedBlock drops the per-call token for the whole generated
	// module, under the caller's blanket promise that the underlying
	// native code upholds its invariants.
	TrustedBlock
)

func (p Policy) String() string {
	switch p {
	case PerCallUnsafe:
		return "unsafe"
	case TrustedBlock:
		return "trusted"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Parse converts the directive-file spelling into a Policy.
func Parse(s string) (Policy, error) {
	switch s {
	case "unsafe":
		return PerCallUnsafe, nil
	case "trusted":
		return TrustedBlock, nil
	default:
		return PerCallUnsafe, fmt.Errorf("unknown safety policy %q (want \"unsafe\" or \"trusted\")", s)
	}
}

// Gated reports whether an entry point requires the acknowledgement
// token. Entry points touching raw pointers are always gated: no
// ownership or liveness guarantee can be inferred for them, so no
// blanket promise can cover them.
func (p Policy) Gated(touchesRawPointer bool) bool {
	if touchesRawPointer {
		return true
	}
	return p == PerCallUnsafe
}
