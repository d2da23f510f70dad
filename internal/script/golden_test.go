package script

import (
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// TestCanonicalEncoding_Golden snapshots the canonical byte encoding of a
// representative literal set. Any drift in the wire encoding shows up as a
// golden diff.
func TestCanonicalEncoding_Golden(t *testing.T) {
	literals := []string{
		"true",
		"false",
		"42u8",
		"258u16",
		"1u32",
		"5",
		"300u64",
		"@0x2",
		`"hi"`,
		`x"00ff"`,
		"[1u8, 2u8]",
		"{7u8, true}",
		"[]",
		"vector[true, false]",
	}

	var sb strings.Builder
	for _, lit := range literals {
		v, err := ParseLiteral(lit)
		require.NoError(t, err, "literal %q", lit)
		p, ok := v.(Plain)
		require.True(t, ok, "literal %q", lit)
		fmt.Fprintf(&sb, "%s => %s\n", lit, hex.EncodeToString(EncodePlain(p.Value)))
	}

	g := goldie.New(t)
	g.Assert(t, "encoding", []byte(sb.String()))
}
