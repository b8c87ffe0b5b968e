package processors

import (
	"context"
	"errors"
	"testing"

	"prokipsync/internal/database"
	"prokipsync/internal/events"
	"prokipsync/internal/logger"
	"prokipsync/internal/models"
	"prokipsync/internal/services/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fakeOrders struct {
	calls [][2]string
	err   error
}

func (f *fakeOrders) ProcessStoreOrder(ctx context.Context, connectionID, orderID string) (*reconcile.Result, error) {
	f.calls = append(f.calls, [2]string{connectionID, orderID})
	if f.err != nil {
		return nil, f.err
	}
	return &reconcile.Result{Total: 1, Success: 1, Status: reconcile.StatusSuccess}, nil
}

func setup(t *testing.T) (*gorm.DB, *fakeOrders, *EventProcessor) {
	t.Helper()
	d, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	orders := &fakeOrders{}
	return d.DB, orders, NewEventProcessor(d.DB, orders, logger.NewNop())
}

func storeHook(t *testing.T, db *gorm.DB, topic, externalID string) *models.WebhookEvent {
	t.Helper()
	hook := &models.WebhookEvent{
		ConnectionID: "8d0b7c62-4a1e-4f5e-9a51-3f1f8f3c2a10",
		Platform:     models.PlatformWooCommerce,
		Topic:        topic,
		ExternalID:   externalID,
		Payload:      datatypes.JSON(`{"id": 1}`),
	}
	require.NoError(t, db.Create(hook).Error)
	return hook
}

func TestProcess_RunsOrderSyncOnce(t *testing.T) {
	db, orders, ep := setup(t)
	hook := storeHook(t, db, "order.created", "1042")
	ctx := context.Background()

	require.NoError(t, ep.Process(ctx, events.FromWebhook(hook)))
	require.Len(t, orders.calls, 1)
	assert.Equal(t, [2]string{hook.ConnectionID, "1042"}, orders.calls[0])

	var stored models.WebhookEvent
	require.NoError(t, db.First(&stored, "id = ?", hook.ID).Error)
	assert.True(t, stored.Processed)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Empty(t, stored.Error)

	// Redelivery is a no-op.
	require.NoError(t, ep.Process(ctx, events.FromWebhook(hook)))
	assert.Len(t, orders.calls, 1)
}

func TestProcess_StoresFailure(t *testing.T) {
	db, orders, ep := setup(t)
	orders.err = errors.New("prokip: API request failed: 500 - down")
	hook := storeHook(t, db, "order.updated", "7")

	err := ep.Process(context.Background(), events.FromWebhook(hook))
	require.Error(t, err)

	var stored models.WebhookEvent
	require.NoError(t, db.First(&stored, "id = ?", hook.ID).Error)
	assert.True(t, stored.Processed)
	assert.Contains(t, stored.Error, "500 - down")
}

func TestProcess_AcknowledgesOtherTopics(t *testing.T) {
	db, orders, ep := setup(t)
	hook := storeHook(t, db, "product.updated", "55")

	require.NoError(t, ep.Process(context.Background(), events.FromWebhook(hook)))
	assert.Empty(t, orders.calls)

	var stored models.WebhookEvent
	require.NoError(t, db.First(&stored, "id = ?", hook.ID).Error)
	assert.True(t, stored.Processed)
}

func TestProcess_UnknownEvent(t *testing.T) {
	_, _, ep := setup(t)
	err := ep.Process(context.Background(), events.Event{Type: events.TypeWebhookReceived, WebhookEventID: "missing"})
	assert.ErrorContains(t, err, "not found")
}
