package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionmatch/internal/metrics"
	"visionmatch/internal/models"
	"visionmatch/internal/negotiation"
)

var (
	clientCaller   = Caller{UserID: "client-1", Email: "client@example.com", Role: models.RoleClient}
	creatorCaller  = Caller{UserID: "creator-1", Email: "creator@example.com", Role: models.RoleCreator}
	strangerCaller = Caller{UserID: "someone-else", Email: "x@example.com", Role: models.RoleClient}
)

func setupNegotiation(t *testing.T, status models.RequestStatus) (*NegotiationService, *memStore, *models.ProjectRequest, *metrics.Metrics) {
	t.Helper()
	store := newMemStore()
	req := store.put(models.ProjectRequest{
		ClientID:  "client-1",
		CreatorID: "creator-1",
		Status:    status,
		Package:   &models.Package{Name: "Wedding", Price: "₹30,000"},
	})
	m := metrics.New(prometheus.NewRegistry())
	svc := NewNegotiationService(memRequests{store}, memMessages{store}, m, nil)
	return svc, store, req, m
}

func price(p int64) *int64 { return &p }

func TestPostMessage_CounterThenRefetch(t *testing.T) {
	svc, store, req, m := setupNegotiation(t, models.StatusNegotiationProposed)
	ctx := context.Background()

	msg, err := svc.PostMessage(ctx, creatorCaller, req.ID, PostMessageInput{
		Type: models.MessageCounter, Text: "Here is my counter", Price: price(27000), Deliverables: "40 photos",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SenderCreator, msg.Sender)

	feed, err := svc.ListMessages(ctx, clientCaller, req.ID, "", 0)
	require.NoError(t, err)
	require.Len(t, feed.Messages, 1)
	got := feed.Messages[0]
	assert.Equal(t, models.MessageCounter, got.Type)
	require.NotNil(t, got.Price)
	assert.Equal(t, int64(27000), *got.Price)
	assert.Equal(t, "40 photos", got.Deliverables)

	stored := store.requests[req.ID]
	assert.Equal(t, models.StatusNegotiating, stored.Status)
	require.NotNil(t, stored.CurrentOffer)
	assert.Equal(t, models.SenderCreator, stored.CurrentOffer.From)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesPosted.WithLabelValues("counter")))
}

func TestPostMessage_SenderComesFromCaller(t *testing.T) {
	svc, _, req, _ := setupNegotiation(t, models.StatusNegotiating)

	msg, err := svc.PostMessage(context.Background(), clientCaller, req.ID, PostMessageInput{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, models.SenderClient, msg.Sender)
	assert.Equal(t, "client-1", msg.SenderID)
	assert.Equal(t, models.MessageText, msg.Type)

	_, err = svc.PostMessage(context.Background(), strangerCaller, req.ID, PostMessageInput{Text: "hello"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPostMessage_ContentFilter(t *testing.T) {
	svc, store, req, m := setupNegotiation(t, models.StatusNegotiating)

	_, err := svc.PostMessage(context.Background(), clientCaller, req.ID, PostMessageInput{Text: "ping me at 98765<b></b>43210"})
	assert.ErrorIs(t, err, negotiation.ErrPhoneNumber)

	_, err = svc.PostMessage(context.Background(), clientCaller, req.ID, PostMessageInput{
		Type: models.MessageOffer, Price: price(1000), Deliverables: "see www.example.com",
	})
	assert.ErrorIs(t, err, negotiation.ErrExternalLink)

	assert.Empty(t, store.messages[req.ID])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilterRejections.WithLabelValues("phone")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilterRejections.WithLabelValues("link")))
}

func TestPostMessage_StripsMarkup(t *testing.T) {
	svc, _, req, _ := setupNegotiation(t, models.StatusNegotiating)

	msg, err := svc.PostMessage(context.Background(), clientCaller, req.ID, PostMessageInput{
		Text: `<script>alert(1)</script><b>Tom & Jerry's</b> shoot`,
	})
	require.NoError(t, err)
	assert.Equal(t, "Tom & Jerry's shoot", msg.Text)

	_, err = svc.PostMessage(context.Background(), clientCaller, req.ID, PostMessageInput{Text: "<i></i>  "})
	assert.ErrorIs(t, err, negotiation.ErrEmptyMessage)
}

func TestPostMessage_OfferValidation(t *testing.T) {
	svc, _, req, _ := setupNegotiation(t, models.StatusPendingCreator)
	ctx := context.Background()

	_, err := svc.PostMessage(ctx, clientCaller, req.ID, PostMessageInput{Type: models.MessageOffer, Deliverables: "x"})
	assert.ErrorIs(t, err, negotiation.ErrInvalidPrice)

	_, err = svc.PostMessage(ctx, clientCaller, req.ID, PostMessageInput{Type: models.MessageOffer, Price: price(500)})
	assert.ErrorIs(t, err, negotiation.ErrMissingDeliverables)

	_, err = svc.PostMessage(ctx, clientCaller, req.ID, PostMessageInput{Type: models.MessageSystem, Text: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPostMessage_Accept(t *testing.T) {
	svc, store, req, _ := setupNegotiation(t, models.StatusNegotiationProposed)
	ctx := context.Background()

	_, err := svc.PostMessage(ctx, clientCaller, req.ID, PostMessageInput{Type: models.MessageAccepted})
	assert.ErrorIs(t, err, negotiation.ErrNoOffer)

	_, err = svc.PostMessage(ctx, creatorCaller, req.ID, PostMessageInput{
		Type: models.MessageOffer, Price: price(26000), Deliverables: "30 photos",
	})
	require.NoError(t, err)

	_, err = svc.PostMessage(ctx, creatorCaller, req.ID, PostMessageInput{Type: models.MessageAccepted})
	assert.ErrorIs(t, err, negotiation.ErrOwnOffer)

	_, err = svc.PostMessage(ctx, clientCaller, req.ID, PostMessageInput{Type: models.MessageAccepted, Price: price(25000)})
	assert.ErrorIs(t, err, negotiation.ErrStaleOffer)

	msg, err := svc.PostMessage(ctx, clientCaller, req.ID, PostMessageInput{Type: models.MessageAccepted, Text: "Deal"})
	require.NoError(t, err)
	require.NotNil(t, msg.Price)
	assert.Equal(t, int64(26000), *msg.Price)
	assert.Equal(t, "30 photos", msg.Deliverables)

	stored := store.requests[req.ID]
	assert.Equal(t, models.StatusAccepted, stored.Status)
	require.NotNil(t, stored.FinalOffer)
	assert.Equal(t, int64(26000), stored.FinalOffer.Price)

	_, err = svc.PostMessage(ctx, clientCaller, req.ID, PostMessageInput{
		Type: models.MessageCounter, Price: price(1), Deliverables: "x",
	})
	assert.ErrorIs(t, err, negotiation.ErrMessageNotAllowed)
}

func TestListMessages_ConditionalAndAfter(t *testing.T) {
	svc, _, req, _ := setupNegotiation(t, models.StatusNegotiating)
	ctx := context.Background()

	first, err := svc.ListMessages(ctx, clientCaller, req.ID, "", 0)
	require.NoError(t, err)
	assert.Empty(t, first.Messages)
	require.Positive(t, first.Version)

	same, err := svc.ListMessages(ctx, clientCaller, req.ID, "", first.Version)
	require.NoError(t, err)
	assert.True(t, same.NotModified)

	a, err := svc.PostMessage(ctx, clientCaller, req.ID, PostMessageInput{Text: "one"})
	require.NoError(t, err)
	_, err = svc.PostMessage(ctx, creatorCaller, req.ID, PostMessageInput{Text: "two"})
	require.NoError(t, err)

	changed, err := svc.ListMessages(ctx, clientCaller, req.ID, "", first.Version)
	require.NoError(t, err)
	assert.False(t, changed.NotModified)
	assert.Len(t, changed.Messages, 2)
	assert.Greater(t, changed.Version, first.Version)

	tail, err := svc.ListMessages(ctx, clientCaller, req.ID, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, tail.Messages, 1)
	assert.Equal(t, "two", tail.Messages[0].Text)

	_, err = svc.ListMessages(ctx, strangerCaller, req.ID, "", 0)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.ListMessages(ctx, clientCaller, "req_missing", "", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListMessages_VersionFollowsCommittedAppends(t *testing.T) {
	svc, store, req, _ := setupNegotiation(t, models.StatusNegotiating)
	ctx := context.Background()

	held, err := svc.ListMessages(ctx, creatorCaller, req.ID, "", 0)
	require.NoError(t, err)

	_, err = svc.PostMessage(ctx, clientCaller, req.ID, PostMessageInput{Text: "are you free on the 12th?"})
	require.NoError(t, err)

	feed, err := svc.ListMessages(ctx, creatorCaller, req.ID, "", held.Version)
	require.NoError(t, err)
	assert.False(t, feed.NotModified)
	require.Len(t, feed.Messages, 1)

	stored, err := memRequests{store}.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.Version, feed.Version)

	again, err := svc.ListMessages(ctx, creatorCaller, req.ID, "", feed.Version)
	require.NoError(t, err)
	assert.True(t, again.NotModified)
	assert.Empty(t, again.Messages)
}

func TestGetNegotiation_ViewerPerspective(t *testing.T) {
	svc, _, req, _ := setupNegotiation(t, models.StatusPendingCreator)
	ctx := context.Background()

	view, err := svc.GetNegotiation(ctx, creatorCaller, req.ID)
	require.NoError(t, err)
	assert.Equal(t, []negotiation.Action{negotiation.ActionAccept, negotiation.ActionNegotiate, negotiation.ActionDecline}, view.AvailableActions)
	assert.Equal(t, int64(30000), view.Pricing.Base)

	clientView, err := svc.GetNegotiation(ctx, clientCaller, req.ID)
	require.NoError(t, err)
	assert.Empty(t, clientView.AvailableActions)

	for _, step := range []struct {
		caller Caller
		typ    models.MessageType
		price  int64
	}{
		{creatorCaller, models.MessageOffer, 20000},
		{clientCaller, models.MessageCounter, 18000},
		{creatorCaller, models.MessageOffer, 19000},
	} {
		_, err := svc.PostMessage(ctx, step.caller, req.ID, PostMessageInput{Type: step.typ, Price: price(step.price), Deliverables: "40 photos"})
		require.NoError(t, err)
	}

	clientView, err = svc.GetNegotiation(ctx, clientCaller, req.ID)
	require.NoError(t, err)
	require.NotNil(t, clientView.CurrentOffer)
	assert.Equal(t, int64(19000), clientView.CurrentOffer.Price)
	assert.Equal(t, models.StatusNegotiating, clientView.Status)
	assert.Equal(t, negotiation.ComputePricing(19000), clientView.Pricing)
	assert.Equal(t, 3, clientView.MessageCount)

	creatorView, err := svc.GetNegotiation(ctx, creatorCaller, req.ID)
	require.NoError(t, err)
	require.NotNil(t, creatorView.CurrentOffer)
	assert.Equal(t, int64(18000), creatorView.CurrentOffer.Price)
	assert.Empty(t, creatorView.AvailableActions)
}
