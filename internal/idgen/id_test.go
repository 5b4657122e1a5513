package idgen_test

import (
	"testing"

	"github.com/rpggio/chronicle/internal/idgen"
	"github.com/stretchr/testify/require"
)

func TestComposeDecomposeRoundTrip(t *testing.T) {
	id := idgen.Compose(idgen.TypeVersion, "u1", "baba")
	typ, user, seq, err := idgen.Decompose(id)
	require.NoError(t, err)
	require.Equal(t, idgen.TypeVersion, typ)
	require.Equal(t, "u1", user)
	require.Equal(t, "baba", seq)
}

func TestReservedIDsShortCircuit(t *testing.T) {
	typ, user, seq, err := idgen.Decompose(idgen.RootVersionID)
	require.NoError(t, err)
	require.Equal(t, idgen.TypeVersion, typ)
	require.Equal(t, "", user)
	require.Equal(t, "ROOT", seq)

	typ, user, seq, err = idgen.Decompose(idgen.TrunkBranchID)
	require.NoError(t, err)
	require.Equal(t, idgen.TypeBranch, typ)
	require.Equal(t, "", user)
	require.Equal(t, "TRUNK", seq)
}

func TestInvalidIDFails(t *testing.T) {
	_, _, _, err := idgen.Decompose("not an id")
	require.ErrorIs(t, err, idgen.ErrInvalidID)
}

func TestNextIncrementsLastVowel(t *testing.T) {
	next, err := idgen.Next(idgen.Compose(idgen.TypeVersion, "", "ba"))
	require.NoError(t, err)
	require.Equal(t, idgen.Compose(idgen.TypeVersion, "", "be"), next)
}

func TestNextCarriesThroughConsonant(t *testing.T) {
	// "bu" -> last vowel wraps, consonant (position 0) increments.
	next, err := idgen.Next(idgen.Compose(idgen.TypeVersion, "", "bu"))
	require.NoError(t, err)
	require.Equal(t, idgen.Compose(idgen.TypeVersion, "", "ca"), next)
}

func TestNextAppendsOnFullCarry(t *testing.T) {
	// "zu" is the last 2-char sequence (z is the last initial consonant,
	// u the last vowel); the odometer must carry out to a 3rd character.
	next, err := idgen.Next(idgen.Compose(idgen.TypeVersion, "", "zu"))
	require.NoError(t, err)
	require.Equal(t, idgen.Compose(idgen.TypeVersion, "", "bab"), next)
}

func TestNextIsTotalAndStrictlyProgresses(t *testing.T) {
	id := idgen.Start(idgen.TypeRecord, "u")
	seen := map[idgen.ID]bool{id: true}
	for i := 0; i < 500; i++ {
		next, err := idgen.Next(id)
		require.NoError(t, err)
		require.False(t, seen[next], "sequence must not repeat")
		seen[next] = true
		id = next
	}
}
