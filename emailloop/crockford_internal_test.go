package emailloop

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateCode_lengthAndAlphabet(t *testing.T) {
	code, err := generateCode()
	require.NoError(t, err)
	require.Len(t, code, codeLength)

	for _, c := range code {
		require.True(t, strings.ContainsRune(crockfordAlphabet, c), "unexpected character %q", c)
	}
}

func TestGenerateCode_varies(t *testing.T) {
	a, err := generateCode()
	require.NoError(t, err)
	b, err := generateCode()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
