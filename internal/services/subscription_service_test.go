package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchastock/internal/domain"
	"matchastock/internal/notify"
	"matchastock/internal/services"
	"matchastock/internal/unsubscribe"
)

func TestSubscribeBrand_ConfirmsOnlyWhenNewOrReactivated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.brand(t, "Ippodo Tea")

	sub, err := e.subscribe.SubscribeBrand(ctx, strp("a@b.com"), nil, b.ID)
	require.NoError(t, err)
	assert.True(t, sub.Active)
	require.Len(t, e.sender.Messages(), 1)
	assert.Equal(t, notify.TemplateSubscriptionConfirmation, e.sender.Messages()[0].Template)

	_, err = e.subscribe.SubscribeBrand(ctx, strp("A@B.com"), nil, b.ID)
	require.NoError(t, err)
	assert.Len(t, e.sender.Messages(), 1, "already active")

	_, err = e.subs.DeactivateBrand(ctx, sub.UserID, b.ID)
	require.NoError(t, err)
	again, err := e.subscribe.SubscribeBrand(ctx, strp("a@b.com"), nil, b.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID)
	assert.Len(t, e.sender.Messages(), 2)
}

func TestSubscribeBrand_ConfirmationFailureIsSwallowed(t *testing.T) {
	e := newEnv(t)
	b := e.brand(t, "Ippodo Tea")
	e.sender.Fail = func(notify.Message) error { return errors.New("mail api down") }

	sub, err := e.subscribe.SubscribeBrand(context.Background(), strp("a@b.com"), nil, b.ID)
	require.NoError(t, err)
	assert.True(t, sub.Active)

	active, err := e.subs.ActiveBrandSubscribers(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestSubscribeBrand_UnknownBrand(t *testing.T) {
	e := newEnv(t)
	_, err := e.subscribe.SubscribeBrand(context.Background(), strp("a@b.com"), nil, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubscribeProduct(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.brand(t, "Ippodo Tea")
	p := e.product(t, b.ID, "Sayaka", nil)

	sub, err := e.subscribe.SubscribeProduct(ctx, nil, strp("+15550000004"), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, sub.ProductID)

	msgs := e.sender.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.ChannelSMS, msgs[0].Channel)
	assert.Equal(t, "Sayaka", msgs[0].Data["name"])
}

func TestUnsubscribe(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ippodo := e.brand(t, "Ippodo Tea")
	sazen := e.brand(t, "Sazen Tea")
	u := e.follower(t, ippodo.ID, strp("a@b.com"), nil)
	_, _, err := e.subs.UpsertBrand(ctx, u.ID, sazen.ID)
	require.NoError(t, err)
	token := e.signer.Token("a@b.com")

	_, err = e.subscribe.Unsubscribe(ctx, services.UnsubscribeRequest{Email: "a@b.com", Token: "1.deadbeef"})
	assert.ErrorIs(t, err, unsubscribe.ErrInvalid)
	assert.True(t, services.IsTokenError(err))

	_, err = e.subscribe.Unsubscribe(ctx, services.UnsubscribeRequest{Email: "x@y.com", Token: e.signer.Token("x@y.com")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := e.subscribe.Unsubscribe(ctx, services.UnsubscribeRequest{
		Email: "a@b.com", Token: token, Scope: unsubscribe.ScopeBrand, BrandID: ippodo.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := e.subs.ActiveBrandSubscribers(ctx, sazen.ID)
	require.NoError(t, err)
	assert.Len(t, left, 1, "other brands stay subscribed")

	n, err = e.subscribe.Unsubscribe(ctx, services.UnsubscribeRequest{Email: "a@b.com", Token: token})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	e.clk.Advance(366 * 24 * time.Hour)
	_, err = e.subscribe.Unsubscribe(ctx, services.UnsubscribeRequest{Email: "a@b.com", Token: token})
	assert.ErrorIs(t, err, unsubscribe.ErrExpired)
}
