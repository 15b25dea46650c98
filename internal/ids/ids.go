// Package ids produces the short opaque identifiers used for rooms and users.
package ids

import (
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// Length is the number of characters in every generated identifier.
const Length = 8

// Generator yields a fresh identifier per call.
type Generator func() string

// New returns a random lowercase base36 identifier of Length characters.
func New() string {
	id := uuid.New()
	encoded := new(big.Int).SetBytes(id[:]).Text(36)
	if len(encoded) < Length {
		encoded = strings.Repeat("0", Length-len(encoded)) + encoded
	}
	return encoded[len(encoded)-Length:]
}
