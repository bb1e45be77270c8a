package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "acetylsalicylic acid", NormalizeName("  Acetylsalicylic   ACID "))
	assert.Equal(t, "warfarin", NormalizeName("Warfarin"))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestHashQueryNormalizesInput(t *testing.T) {
	assert.Equal(t, HashQuery("Aspirin and Warfarin"), HashQuery("  aspirin   AND warfarin "))
	assert.NotEqual(t, HashQuery("aspirin"), HashQuery("warfarin"))
}

func TestHashPairIsOrderIndependent(t *testing.T) {
	assert.Equal(t, HashPair("Aspirin", "Warfarin"), HashPair("warfarin", "aspirin"))
	assert.NotEqual(t, HashPair("aspirin", "warfarin"), HashPair("aspirin", "ibuprofen"))
}

func TestHashPairDistinguishesBoundaries(t *testing.T) {
	// The separator keeps ("ab", "c") and ("a", "bc") apart.
	assert.NotEqual(t, HashPair("ab", "c"), HashPair("a", "bc"))
}
