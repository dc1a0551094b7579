package apikey

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
)

func TestHashKeyIsStableHex(t *testing.T) {
	h := HashKey("hd_example")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashKey("hd_example"))
	assert.NotEqual(t, h, HashKey("hd_other"))
}

func TestGenerateRawKey(t *testing.T) {
	a, err := generateRawKey()
	require.NoError(t, err)
	b, err := generateRawKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, KeyPrefix))
	assert.Len(t, a, len(KeyPrefix)+64)
	assert.NotEqual(t, a, b)
}

func TestNewKeyValidate(t *testing.T) {
	k := NewKey{Member: "  alex  "}
	require.NoError(t, k.Validate())
	assert.Equal(t, "alex", k.Member)
	assert.Equal(t, 120, k.RateLimit)

	err := (&NewKey{Member: " "}).Validate()
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	err = (&NewKey{Member: "alex", RateLimit: -1}).Validate()
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestKeyInfoExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, KeyInfo{}.Expired(now))
	assert.True(t, KeyInfo{ExpiresAt: &past}.Expired(now))
	assert.False(t, KeyInfo{ExpiresAt: &future}.Expired(now))
}
