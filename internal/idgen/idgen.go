// Package idgen produces operation identifiers for graphql-ws sessions.
//
// Identifiers only need to be unique among the operations currently open on one
// session; the dispatcher re-draws on collision, so generators need not guarantee
// uniqueness themselves.
package idgen

import (
	"math/rand/v2"

	"github.com/oklog/ulid/v2"
)

// DefaultSize is the length of identifiers produced by Default.
const DefaultSize = 6

// alphabet holds the 62 symbols identifiers are drawn from.
const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generator produces operation identifiers. Implementations must be safe for
// concurrent use.
type Generator interface {
	Generate() string
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func() string

// Generate implements Generator.
func (f GeneratorFunc) Generate() string { return f() }

// Alphanumeric draws Size symbols uniformly from [A-Za-z0-9].
// A zero Size means DefaultSize.
type Alphanumeric struct {
	Size int
}

// Generate implements Generator.
func (a Alphanumeric) Generate() string {
	size := a.Size
	if size <= 0 {
		size = DefaultSize
	}

	b := make([]byte, size)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}

	return string(b)
}

// ULID produces 26-character ULIDs, for deployments that want identifiers that are
// unique across sessions and sortable by creation time.
type ULID struct{}

// Generate implements Generator.
func (ULID) Generate() string {
	return ulid.Make().String()
}

// Default returns the generator used when none is configured.
func Default() Generator {
	return Alphanumeric{Size: DefaultSize}
}
