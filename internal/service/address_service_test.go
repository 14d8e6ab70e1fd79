package service

import (
	"context"
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAddresses_SingleDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := primitive.NewObjectID()

	home, err := env.addresses.AddAddress(ctx, user, *testAddress(), false)
	require.NoError(t, err)
	assert.True(t, home.IsDefault, "first address becomes the default")

	work := *testAddress()
	work.Street = "1 Tech Park"
	office, err := env.addresses.AddAddress(ctx, user, work, true)
	require.NoError(t, err)
	assert.True(t, office.IsDefault)

	list, err := env.addresses.ListAddresses(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, office.ID, list[0].ID)
	assert.False(t, list[1].IsDefault)

	_, err = env.addresses.SetDefaultAddress(ctx, user, home.ID)
	require.NoError(t, err)
	list, err = env.addresses.ListAddresses(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, home.ID, list[0].ID)
	assert.True(t, list[0].IsDefault)
	assert.False(t, list[1].IsDefault)

	_, err = env.addresses.SetDefaultAddress(ctx, primitive.NewObjectID(), home.ID)
	requireKind(t, err, domain.KindNotFound)
}

func TestAddresses_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := primitive.NewObjectID()

	_, err := env.addresses.AddAddress(ctx, user, domain.ShippingAddress{City: "Pune"}, false)
	requireKind(t, err, domain.KindInvalidInput)

	addr, err := env.addresses.AddAddress(ctx, user, *testAddress(), false)
	require.NoError(t, err)

	changed := *testAddress()
	changed.City = " Mumbai "
	updated, err := env.addresses.UpdateAddress(ctx, user, addr.ID, changed)
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", updated.City)

	_, err = env.addresses.UpdateAddress(ctx, primitive.NewObjectID(), addr.ID, changed)
	requireKind(t, err, domain.KindNotFound)

	requireKind(t, env.addresses.DeleteAddress(ctx, primitive.NewObjectID(), addr.ID), domain.KindNotFound)
	require.NoError(t, env.addresses.DeleteAddress(ctx, user, addr.ID))
	list, err := env.addresses.ListAddresses(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, list)
}
