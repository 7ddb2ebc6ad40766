package services

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserServiceProfile(t *testing.T) {
	users := newMemUsers()
	svc := NewUserService(users)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	wallet := key.PublicKey().String()

	u, err := svc.EnsureUser(context.Background(), " "+wallet+" ")
	require.NoError(t, err)
	again, err := svc.EnsureUser(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)

	_, err = svc.EnsureUser(context.Background(), "0xdeadbeef")
	assert.True(t, isValidation(err))

	updated, err := svc.UpdateProfile(context.Background(), u.ID, UpdateProfileInput{GameTag: strPtr(" p2y8 ")})
	require.NoError(t, err)
	assert.Equal(t, "#P2Y8", updated.GameTagValue())

	_, err = svc.UpdateProfile(context.Background(), u.ID, UpdateProfileInput{GameTag: strPtr("#ABC")})
	assert.True(t, isValidation(err))

	other := users.add("")
	_, err = svc.UpdateProfile(context.Background(), other.ID, UpdateProfileInput{WalletAddress: &wallet})
	assert.True(t, isValidation(err), "wallet already linked")
}
