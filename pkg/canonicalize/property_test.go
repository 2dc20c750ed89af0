package canonicalize

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_KeyOrderInvariance checks Testable Property 4: canonicalize
// is invariant under object-key permutation.
func TestProperty_KeyOrderInvariance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("permuting keys does not change canonical bytes", prop.ForAll(
		func(a, b, c int) bool {
			forward := map[string]interface{}{"alpha": a, "beta": b, "gamma": c}
			reverse := map[string]interface{}{"gamma": c, "beta": b, "alpha": a}

			bf, err := JCS(forward)
			if err != nil {
				return false
			}
			br, err := JCS(reverse)
			if err != nil {
				return false
			}
			return string(bf) == string(br)
		},
		gen.IntRange(-1000, 1000),
		gen.IntRange(-1000, 1000),
		gen.IntRange(-1000, 1000),
	))

	properties.TestingRun(t)
}

// TestProperty_Determinism checks that canonicalizing the same value twice
// always produces identical bytes.
func TestProperty_Determinism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("canonicalization is deterministic", prop.ForAll(
		func(s string, n int) bool {
			v := map[string]interface{}{"s": s, "n": n}
			b1, err1 := JCS(v)
			b2, err2 := JCS(v)
			if err1 != nil || err2 != nil {
				return err1 == err2
			}
			return string(b1) == string(b2)
		},
		gen.AnyString(),
		gen.Int(),
	))

	properties.TestingRun(t)
}
