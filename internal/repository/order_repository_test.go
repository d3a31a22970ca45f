package repository_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/lumapay/bnpl-gateway/internal/models"
	"github.com/lumapay/bnpl-gateway/internal/repository"
)

type recordingCart struct {
	emptied []string
}

func (c *recordingCart) EmptyCart(_ context.Context, customerID string) error {
	c.emptied = append(c.emptied, customerID)
	return nil
}

func setupRepo(t *testing.T) (*repository.OrderRepository, *recordingCart) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cart := &recordingCart{}
	repo := repository.NewOrderRepository(db, cart)
	require.NoError(t, repo.InitDB())
	return repo, cart
}

func seedOrder(t *testing.T, repo *repository.OrderRepository) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &models.OrderSnapshot{
		ID:         42,
		OrderKey:   "wc_order_abc",
		Status:     models.OrderPending,
		Total:      decimal.NewFromInt(100),
		Currency:   "NGN",
		CustomerID: "cust-9",
		Email:      "shopper@example.com",
	}))
}

func happyDecision() models.OrderDecision {
	return models.OrderDecision{
		NewStatus:           models.OrderCompleted,
		MarkPaymentComplete: true,
		SetTransactionRef:   true,
		EmptyCart:           true,
		Notes: []models.OrderNote{
			{Key: "payment-complete/customer", Kind: models.NoteCustomer, Body: "Payment via Klump successful (Transaction Reference: KLP_42_1)"},
		},
	}
}

func TestGet_Missing(t *testing.T) {
	repo, _ := setupRepo(t)

	_, err := repo.Get(context.Background(), 404)
	require.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestSetTransactionRef(t *testing.T) {
	repo, _ := setupRepo(t)
	seedOrder(t, repo)

	require.NoError(t, repo.SetTransactionRef(context.Background(), 42, "KLP_42_1"))

	o, err := repo.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "KLP_42_1", o.TransactionRef)

	require.ErrorIs(t, repo.SetTransactionRef(context.Background(), 404, "KLP_404_1"), repository.ErrOrderNotFound)
}

func TestApplyDecision_HappyPath(t *testing.T) {
	repo, cart := setupRepo(t)
	seedOrder(t, repo)
	ctx := context.Background()

	res, err := repo.ApplyDecision(ctx, 42, "KLP_42_1", happyDecision())
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, models.OrderPending, res.PreviousStatus)
	assert.Equal(t, models.OrderCompleted, res.NewStatus)

	o, err := repo.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, o.Status)
	assert.Equal(t, []string{"cust-9"}, cart.emptied)

	notes, err := repo.Notes(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

// Applying the same decision twice must not duplicate notes, stock
// reduction, or cart clearing, and must leave the status where it landed.
func TestApplyDecision_Idempotent(t *testing.T) {
	repo, cart := setupRepo(t)
	seedOrder(t, repo)
	ctx := context.Background()

	first, err := repo.ApplyDecision(ctx, 42, "KLP_42_1", happyDecision())
	require.NoError(t, err)
	require.True(t, first.Applied)

	second, err := repo.ApplyDecision(ctx, 42, "KLP_42_1", happyDecision())
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, models.OrderCompleted, second.NewStatus)

	notes, err := repo.Notes(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
	assert.Len(t, cart.emptied, 1)
}

func TestApplyDecision_OnHoldGuardsLaterStatusChange(t *testing.T) {
	repo, _ := setupRepo(t)
	seedOrder(t, repo)
	ctx := context.Background()

	hold := models.OrderDecision{
		NewStatus:   models.OrderOnHold,
		ReduceStock: true,
		Notes: []models.OrderNote{
			{Key: "amount-short/customer", Kind: models.NoteCustomer, Body: "short"},
			{Key: "amount-short/admin", Kind: models.NoteAdmin, Body: "short admin"},
		},
	}

	res, err := repo.ApplyDecision(ctx, 42, "KLP_42_1", hold)
	require.NoError(t, err)
	require.True(t, res.Applied)

	// A racing happy-path decision must bounce off the settled guard.
	late, err := repo.ApplyDecision(ctx, 42, "KLP_42_1", happyDecision())
	require.NoError(t, err)
	assert.False(t, late.Applied)

	o, err := repo.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.OrderOnHold, o.Status)
}

func TestApplyDecision_FailedOrderCanBeRetried(t *testing.T) {
	repo, _ := setupRepo(t)
	seedOrder(t, repo)
	ctx := context.Background()

	failed := models.OrderDecision{NewStatus: models.OrderFailed}
	res, err := repo.ApplyDecision(ctx, 42, "KLP_42_1", failed)
	require.NoError(t, err)
	require.True(t, res.Applied)

	retry, err := repo.ApplyDecision(ctx, 42, "KLP_42_2", happyDecision())
	require.NoError(t, err)
	assert.True(t, retry.Applied)
	assert.Equal(t, models.OrderFailed, retry.PreviousStatus)
	assert.Equal(t, models.OrderCompleted, retry.NewStatus)
}

func TestApplyDecision_UnchangedStatusIsNoop(t *testing.T) {
	repo, cart := setupRepo(t)
	seedOrder(t, repo)

	res, err := repo.ApplyDecision(context.Background(), 42, "KLP_42_1", models.OrderDecision{})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Empty(t, cart.emptied)
}
