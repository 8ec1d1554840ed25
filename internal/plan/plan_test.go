package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitsForKnownTiers(t *testing.T) {
	cases := []struct {
		tier     string
		messages int64
		ai       int64
		storage  int64
	}{
		{"free", 100, 50, 10},
		{"basic", 1000, 500, 100},
		{"premium", 10000, 5000, 1000},
		{"enterprise", 100000, 50000, 10000},
	}
	for _, tc := range cases {
		limits, err := LimitsFor(tc.tier)
		require.NoError(t, err, tc.tier)
		assert.Equal(t, tc.messages, limits.MaxMessagesPerMonth, tc.tier)
		assert.Equal(t, tc.ai, limits.MaxAIRequestsPerMonth, tc.tier)
		assert.Equal(t, tc.storage, limits.MaxStorageMB, tc.tier)
	}
}

func TestLimitsForNormalizesCase(t *testing.T) {
	limits, err := LimitsFor("  Premium ")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), limits.MaxMessagesPerMonth)
}

func TestLimitsForUnknownTierFailsClosed(t *testing.T) {
	for _, tier := range []string{"", "gold", "free-trial"} {
		limits, err := LimitsFor(tier)
		assert.ErrorIs(t, err, ErrUnknownPlan, tier)
		assert.Equal(t, Limits{}, limits, tier)
	}
}

func TestCeilingsStrictlyIncrease(t *testing.T) {
	plans := All()
	require.Len(t, plans, 4)
	for i := 1; i < len(plans); i++ {
		prev, cur := plans[i-1].Limits, plans[i].Limits
		assert.Greater(t, cur.MaxMessagesPerMonth, prev.MaxMessagesPerMonth)
		assert.Greater(t, cur.MaxAIRequestsPerMonth, prev.MaxAIRequestsPerMonth)
		assert.Greater(t, cur.MaxStorageMB, prev.MaxStorageMB)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	plans := All()
	plans[0].Limits.MaxMessagesPerMonth = 1

	limits, err := LimitsFor("free")
	require.NoError(t, err)
	assert.Equal(t, int64(100), limits.MaxMessagesPerMonth)
	assert.True(t, TierFree.Valid())
	assert.False(t, Tier("gold").Valid())
}
