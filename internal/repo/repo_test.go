package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/courtbook/webhook-service/internal/logger"
	"github.com/courtbook/webhook-service/internal/model"
)

func newTestRepo(t *testing.T) (*Repository, context.Context) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.WebhookEvent{}, &model.Payment{}, &model.Booking{}))

	log, _ := logger.NewLogger()
	return NewRepository(db, nil, log), context.Background()
}

func pendingEvent(id, externalID string) *model.WebhookEvent {
	return &model.WebhookEvent{
		ID:         id,
		Provider:   model.ProviderOmise,
		EventType:  "payment",
		ExternalID: externalID,
		Payload:    "{}",
		Status:     model.WebhookStatusPending,
	}
}

func TestStoreEvent_UniqueIndexArbitratesDuplicates(t *testing.T) {
	r, ctx := newTestRepo(t)

	first := pendingEvent("id-1", "evnt_dup")
	first.Payload = `{"v":1}`
	stored, created, err := r.StoreEvent(ctx, first)
	assert.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "id-1", stored.ID)

	second := pendingEvent("id-2", "evnt_dup")
	second.Payload = `{"v":2}`
	stored, created, err = r.StoreEvent(ctx, second)
	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "id-1", stored.ID)
	assert.Equal(t, `{"v":1}`, stored.Payload)

	var count int64
	assert.NoError(t, r.DB(ctx).Model(&model.WebhookEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetEvent_NotFound(t *testing.T) {
	r, ctx := newTestRepo(t)
	_, err := r.GetEvent(ctx, model.ProviderOmise, "nope")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestDuePendingEvents_SelectionFilters(t *testing.T) {
	r, ctx := newTestRepo(t)
	now := time.Now()

	// due: never attempted
	a := pendingEvent("a", "a")
	a.CreatedAt = now.Add(-4 * time.Hour)
	// due: retry time passed
	b := pendingEvent("b", "b")
	b.CreatedAt = now.Add(-3 * time.Hour)
	past := now.Add(-time.Minute)
	b.NextRetryAt = &past
	// not due yet
	c := pendingEvent("c", "c")
	future := now.Add(time.Hour)
	c.NextRetryAt = &future
	// terminal rows never selected
	d := pendingEvent("d", "d")
	d.Status = model.WebhookStatusCompleted
	e := pendingEvent("e", "e")
	e.Status = model.WebhookStatusFailed
	// out of attempts
	f := pendingEvent("f", "f")
	f.Attempts = 5

	for _, evt := range []*model.WebhookEvent{a, b, c, d, e, f} {
		assert.NoError(t, r.DB(ctx).Create(evt).Error)
	}

	due, err := r.DuePendingEvents(ctx, 10, 5)
	assert.NoError(t, err)
	assert.Len(t, due, 2)
	// oldest first
	assert.Equal(t, "a", due[0].ID)
	assert.Equal(t, "b", due[1].ID)

	limited, err := r.DuePendingEvents(ctx, 1, 5)
	assert.NoError(t, err)
	assert.Len(t, limited, 1)
	assert.Equal(t, "a", limited[0].ID)
}

func TestDeleteTerminalEventsBefore(t *testing.T) {
	r, ctx := newTestRepo(t)
	old := time.Now().AddDate(0, 0, -40)

	oc := pendingEvent("old-completed", "oc")
	oc.Status = model.WebhookStatusCompleted
	oc.CreatedAt = old
	of := pendingEvent("old-failed", "of")
	of.Status = model.WebhookStatusFailed
	of.CreatedAt = old
	op := pendingEvent("old-pending", "op")
	op.CreatedAt = old
	nc := pendingEvent("new-completed", "nc")
	nc.Status = model.WebhookStatusCompleted

	for _, evt := range []*model.WebhookEvent{oc, of, op, nc} {
		assert.NoError(t, r.DB(ctx).Create(evt).Error)
	}

	deleted, err := r.DeleteTerminalEventsBefore(ctx, time.Now().AddDate(0, 0, -30))
	assert.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	var ids []string
	assert.NoError(t, r.DB(ctx).Model(&model.WebhookEvent{}).Order("id").Pluck("id", &ids).Error)
	assert.Equal(t, []string{"new-completed", "old-pending"}, ids)
}

func TestUpdateEvent_WritesSelectedColumns(t *testing.T) {
	r, ctx := newTestRepo(t)
	evt := pendingEvent("u", "u")
	assert.NoError(t, r.DB(ctx).Create(evt).Error)

	assert.NoError(t, r.UpdateEvent(ctx, "u", map[string]interface{}{
		"status":        model.WebhookStatusProcessing,
		"attempts":      2,
		"error_message": "still waiting",
	}))

	got, err := r.GetEvent(ctx, model.ProviderOmise, "u")
	assert.NoError(t, err)
	assert.Equal(t, model.WebhookStatusProcessing, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "still waiting", *got.ErrorMessage)
}

func TestAcquireLease_WithoutRedisAlwaysGrants(t *testing.T) {
	r, ctx := newTestRepo(t)
	ok, err := r.AcquireLease(ctx, "webhook-processor", time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, r.ReleaseLease(ctx, "webhook-processor"))
}

func TestAcquireLease_RedisArbitration(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	log, _ := logger.NewLogger()
	r := NewRepository(nil, rdb, log)
	ctx := context.Background()

	mock.ExpectSetNX("lease:webhook-processor", 1, time.Minute).SetVal(true)
	ok, err := r.AcquireLease(ctx, "webhook-processor", time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectSetNX("lease:webhook-processor", 1, time.Minute).SetVal(false)
	ok, err = r.AcquireLease(ctx, "webhook-processor", time.Minute)
	assert.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectDel("lease:webhook-processor").SetVal(1)
	assert.NoError(t, r.ReleaseLease(ctx, "webhook-processor"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
