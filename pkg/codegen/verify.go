package codegen

import (
	"fmt"
	"sort"
)

// verifyArtifacts cross-checks the bridge and shim sides of the
// generated pair: every symbol the bridge calls must be defined by
// the shim exactly once, and vice versa. A mismatch is a bug in the
// generator, not
// a user error, so it fails loudly instead of emitting unsound
// output.
func verifyArtifacts(frags []*fragment) {
	used := make(map[string]bool)
	defined := make(map[string]int)
	for _, f := range frags {
		for _, s := range f.symbolsUsed {
			used[s] = true
		}
		for _, s := range f.symbolsDefined {
			defined[s]++
		}
	}

	var missing, orphaned, duplicated []string
	for s := range used {
		if defined[s] == 0 {
			missing = append(missing, s)
		}
	}
	for s, n := range defined {
		if !used[s] {
			orphaned = append(orphaned, s)
		}
		if n > 1 {
			duplicated = append(duplicated, s)
		}
	}
	if len(missing) == 0 && len(orphaned) == 0 && len(duplicated) == 0 {
		return
	}
	sort.Strings(missing)
	sort.Strings(orphaned)
	sort.Strings(duplicated)
	panic(fmt.Sprintf(
		"generated artifacts are inconsistent (bridge calls without shim definitions: %v; shim definitions never called: %v; shim symbols defined more than once: %v): internal invariant violated",
		missing, orphaned, duplicated))
}
