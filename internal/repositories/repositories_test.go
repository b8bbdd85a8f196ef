package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"visionmatch/internal/database"
	"visionmatch/internal/models"
)

// setupPool starts a throwaway Postgres, runs the migrations and returns a pool.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test: skipped with -short")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("visionmatch"),
		postgres.WithUsername("vm"),
		postgres.WithPassword("vm"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.RunMigrations(ctx, pool))
	return pool
}

func TestRepositories_NegotiationAndEscrow(t *testing.T) {
	pool := setupPool(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	requests := NewRequestRepository(pool)
	messages := NewMessageRepository(pool)
	payments := NewPaymentRepository(pool)
	bookings := NewBookingRepository(pool)
	balances := NewBalanceRepository(pool)

	req := &models.ProjectRequest{
		ClientID:  "client-1",
		CreatorID: "creator-1",
		Package:   &models.Package{Name: "Wedding", Price: "₹30,000"},
	}
	require.NoError(t, requests.Create(ctx, req))

	t.Run("get and list", func(t *testing.T) {
		got, err := requests.GetByID(ctx, req.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.StatusPendingCreator, got.Status)
		require.NotNil(t, got.Package)
		assert.Equal(t, models.PriceLabel("₹30,000"), got.Package.Price)

		missing, err := requests.GetByID(ctx, "req_missing")
		require.NoError(t, err)
		assert.Nil(t, missing)

		list, err := requests.ListByCreatorID(ctx, "creator-1")
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("append counter then re-fetch", func(t *testing.T) {
		price := int64(28000)
		msg, updated, err := messages.AppendMessage(ctx, req.ID,
			func(r *models.ProjectRequest, feed []models.NegotiationMessage) (*models.NegotiationMessage, error) {
				assert.Empty(t, feed)
				r.Status = models.StatusNegotiating
				r.CurrentOffer = &models.Offer{Price: price, Deliverables: "40 photos", From: models.SenderCreator}
				return &models.NegotiationMessage{
					Sender: models.SenderCreator, Type: models.MessageCounter,
					Price: &price, Deliverables: "40 photos",
				}, nil
			})
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)

		feed, err := messages.ListByRequestID(ctx, req.ID, "")
		require.NoError(t, err)
		require.Len(t, feed, 1)
		assert.Equal(t, msg.ID, feed[0].ID)
		assert.Equal(t, models.MessageCounter, feed[0].Type)
		require.NotNil(t, feed[0].Price)
		assert.Equal(t, price, *feed[0].Price)
		assert.Equal(t, "40 photos", feed[0].Deliverables)

		after, err := messages.ListByRequestID(ctx, req.ID, msg.ID)
		require.NoError(t, err)
		assert.Empty(t, after)
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		stale, err := requests.GetByID(ctx, req.ID)
		require.NoError(t, err)
		_, err = requests.Mutate(ctx, req.ID, func(r *models.ProjectRequest) error {
			r.Status = models.StatusAccepted
			return nil
		})
		require.NoError(t, err)
		assert.ErrorIs(t, updateRequest(ctx, pool, stale), ErrVersionConflict)
	})

	t.Run("escrow and release", func(t *testing.T) {
		p := &models.Payment{
			RequestID: req.ID, ClientID: "client-1", CreatorID: "creator-1",
			BaseAmount: 28000, PlatformFee: 2800, GST: 5544, Amount: 36344,
			GatewayOrderID: "order_1",
		}
		require.NoError(t, payments.Create(ctx, p))

		byOrder, err := payments.GetByGatewayOrderID(ctx, "order_1")
		require.NoError(t, err)
		require.NotNil(t, byOrder)
		assert.Equal(t, p.ID, byOrder.ID)

		escrowed, booking, err := payments.Escrow(ctx, p.ID, "pay_1",
			func(r *models.ProjectRequest, p *models.Payment) *models.Booking {
				return &models.Booking{
					RequestID: r.ID, PaymentID: p.ID, ClientID: r.ClientID, CreatorID: r.CreatorID,
					FinalAmount: p.BaseAmount, Deliverables: "40 photos",
				}
			})
		require.NoError(t, err)
		assert.Equal(t, models.PaymentEscrowed, escrowed.Status)
		assert.Equal(t, models.EscrowHeld, booking.EscrowStatus)

		_, _, err = payments.Escrow(ctx, p.ID, "pay_1", nil)
		assert.ErrorIs(t, err, ErrPaymentState)

		paid, err := requests.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPaid, paid.Status)
		require.NotNil(t, paid.BookingID)
		assert.Equal(t, booking.ID, *paid.BookingID)

		released, rb, err := payments.Release(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentCompleted, released.Status)
		assert.NotNil(t, released.CompletedAt)
		assert.Equal(t, models.EscrowReleased, rb.EscrowStatus)

		balance, err := balances.Get(ctx, "creator-1")
		require.NoError(t, err)
		assert.Equal(t, int64(28000), balance)

		done, err := requests.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, done.Status)

		list, err := bookings.ListByClientID(ctx, "client-1")
		require.NoError(t, err)
		assert.Len(t, list, 1)

		_, err = bookings.Dispute(ctx, rb.ID, "late delivery")
		assert.ErrorIs(t, err, ErrPaymentState)
	})

	t.Run("disputed booking is not released", func(t *testing.T) {
		other := &models.ProjectRequest{ClientID: "client-2", CreatorID: "creator-2", Status: models.StatusAccepted}
		require.NoError(t, requests.Create(ctx, other))
		p := &models.Payment{
			RequestID: other.ID, ClientID: "client-2", CreatorID: "creator-2",
			BaseAmount: 10000, PlatformFee: 1000, GST: 1980, Amount: 12980,
			GatewayOrderID: "order_2",
		}
		require.NoError(t, payments.Create(ctx, p))
		_, booking, err := payments.Escrow(ctx, p.ID, "pay_2",
			func(r *models.ProjectRequest, p *models.Payment) *models.Booking {
				return &models.Booking{
					RequestID: r.ID, PaymentID: p.ID, ClientID: r.ClientID, CreatorID: r.CreatorID,
					FinalAmount: p.BaseAmount, Deliverables: "highlight reel",
				}
			})
		require.NoError(t, err)

		_, err = bookings.Dispute(ctx, booking.ID, "no show")
		require.NoError(t, err)

		_, _, err = payments.Release(ctx, p.ID)
		assert.ErrorIs(t, err, ErrPaymentState)

		still, err := payments.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentEscrowed, still.Status)
		balance, err := balances.Get(ctx, "creator-2")
		require.NoError(t, err)
		assert.Zero(t, balance)
	})
}
