package digest

import (
	"regexp"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestProperty1_DigestShapeAndDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("digest is 64 lowercase hex chars", prop.ForAll(
		func(s string) bool {
			return hexPattern.MatchString(Digest(s))
		},
		gen.AnyString(),
	))

	properties.Property("digest is deterministic", prop.ForAll(
		func(s string) bool {
			return Digest(s) == Digest(s)
		},
		gen.AnyString(),
	))

	properties.Property("different inputs give different digests", prop.ForAll(
		func(a, b string) bool {
			if a == b {
				return true
			}
			return Digest(a) != Digest(b)
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestProperty2_Verify(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("verify accepts own digest", prop.ForAll(
		func(s string) bool {
			return Verify(s, Digest(s))
		},
		gen.AnyString(),
	))

	properties.Property("verify rejects digest of other content", prop.ForAll(
		func(a, b string) bool {
			if a == b {
				return true
			}
			return !Verify(a, Digest(b))
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestDigestReferenceValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "empty",
			content: "",
			want:    "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:    "abc",
			content: "abc",
			want:    "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
		{
			name:    "groceries",
			content: "Milk, eggs, bread",
			want:    "a920e4da1fc22ba0e94c1670552f9cf443aefbc60b1b908599aecc3003d14f8e",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Digest(tt.content))
		})
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	assert.False(t, Verify("abc", ""))
	assert.False(t, Verify("abc", "BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD"))
	assert.False(t, Verify("abc", "ba7816bf"))
}
