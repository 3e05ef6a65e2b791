package services_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchastock/internal/domain"
	"matchastock/internal/notify"
)

func restock(ps ...domain.Product) []domain.RestockedProduct {
	out := make([]domain.RestockedProduct, 0, len(ps))
	for _, p := range ps {
		out = append(out, domain.RestockedProduct{ProductID: p.ID, Name: p.Name, Price: p.Price, URL: p.URL})
	}
	return out
}

func TestDispatch_OneMessagePerSubscriberPerCycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.brand(t, "MatchaJP - Koyamaen")
	wako := e.product(t, b.ID, "Wako", nil)
	isuzu := e.product(t, b.ID, "Isuzu", nil)
	aoarashi := e.product(t, b.ID, "Aoarashi", nil)
	e.follower(t, b.ID, strp("a@b.com"), nil)
	e.follower(t, b.ID, strp("c@d.com"), strp("+15550000001"))

	n, err := e.dispatch.OnRestock(ctx, b.ID, restock(wako, isuzu, aoarashi))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	msgs := e.sender.Messages()
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, notify.ChannelEmail, m.Channel)
		assert.Equal(t, notify.TemplateBrandRestock, m.Template)
		assert.Equal(t, "MatchaJP - Koyamaen", m.Data["brandName"])
		assert.Len(t, m.Data["products"], 3)

		link, err := url.Parse(m.Data["unsubscribeUrl"].(string))
		require.NoError(t, err)
		assert.Equal(t, b.ID, link.Query().Get("brand"))
		assert.NoError(t, e.signer.Verify(m.Recipient, link.Query().Get("token")))
	}
}

func TestDispatch_UnionOfBrandAndProductSubscribers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.brand(t, "Ippodo Tea")
	sayaka := e.product(t, b.ID, "Sayaka", nil)
	ummon := e.product(t, b.ID, "Ummon", nil)

	both := e.follower(t, b.ID, strp("both@b.com"), nil)
	_, _, err := e.subs.UpsertProduct(ctx, both.ID, sayaka.ID)
	require.NoError(t, err)

	only, _, err := e.users.Upsert(ctx, strp("only@b.com"), nil)
	require.NoError(t, err)
	_, _, err = e.subs.UpsertProduct(ctx, only.ID, ummon.ID)
	require.NoError(t, err)

	n, err := e.dispatch.OnRestock(ctx, b.ID, restock(sayaka, ummon))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	byRecipient := map[string]notify.Message{}
	for _, m := range e.sender.Messages() {
		byRecipient[m.Recipient] = m
	}
	require.Len(t, byRecipient, 2)

	assert.Len(t, byRecipient["both@b.com"].Data["products"], 2)

	onlyMsg := byRecipient["only@b.com"]
	products := onlyMsg.Data["products"].([]domain.RestockedProduct)
	require.Len(t, products, 1)
	assert.Equal(t, "Ummon", products[0].Name)
	link, err := url.Parse(onlyMsg.Data["unsubscribeUrl"].(string))
	require.NoError(t, err)
	assert.Equal(t, "product", link.Query().Get("type"))
	assert.Equal(t, ummon.ID, link.Query().Get("product"))
}

func TestDispatch_FailureForOneRecipientDoesNotBlockOthers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.brand(t, "Ippodo Tea")
	p := e.product(t, b.ID, "Sayaka", nil)
	e.follower(t, b.ID, strp("bounce@b.com"), nil)
	e.follower(t, b.ID, strp("ok@b.com"), nil)
	e.follower(t, b.ID, nil, strp("+15550000002"))

	e.sender.Fail = func(m notify.Message) error {
		if m.Recipient == "bounce@b.com" {
			return errors.New("mailbox unavailable")
		}
		return nil
	}

	n, err := e.dispatch.OnRestock(ctx, b.ID, restock(p))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"ok@b.com", "+15550000002"}, recipients(e.sender.Messages()))
}

func TestDispatch_SkipsInactiveAndEmpty(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.brand(t, "Ippodo Tea")
	p := e.product(t, b.ID, "Sayaka", nil)
	u := e.follower(t, b.ID, strp("gone@b.com"), nil)
	_, err := e.subs.DeactivateBrand(ctx, u.ID, b.ID)
	require.NoError(t, err)

	n, err := e.dispatch.OnRestock(ctx, b.ID, restock(p))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = e.dispatch.OnRestock(ctx, b.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, e.sender.Messages())
}

func TestDispatch_SMSHasNoUnsubscribeLink(t *testing.T) {
	e := newEnv(t)
	b := e.brand(t, "Ippodo Tea")
	p := e.product(t, b.ID, "Sayaka", nil)
	e.follower(t, b.ID, nil, strp("+15550000003"))

	_, err := e.dispatch.OnRestock(context.Background(), b.ID, restock(p))
	require.NoError(t, err)
	msgs := e.sender.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.ChannelSMS, msgs[0].Channel)
	assert.NotContains(t, msgs[0].Data, "unsubscribeUrl")
}
