package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hashed, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hashed)
	assert.True(t, CheckPassword(hashed, "s3cret!"))
	assert.False(t, CheckPassword(hashed, "wrong"))
}

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SHA256Hex(""))
}

func TestIDsAreUUIDs(t *testing.T) {
	_, err := uuid.Parse(NewUserID())
	assert.NoError(t, err)
	assert.NotEqual(t, NewTokenID(), NewTokenID())
}
