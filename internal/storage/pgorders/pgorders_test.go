package pgorders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BearBump/FabOrders/internal/models"
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container test skipped in -short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "fab_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/fab_test?sslmode=disable"
	st, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	require.NoError(t, st.Migrate(ctx))
	// повторный запуск миграций: no-op
	require.NoError(t, st.Migrate(ctx))
	return st
}

func TestPGOrders_RepoFlow(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	customer, err := st.CreateUser(ctx, &models.User{Name: "Aysel", Phone: "0501234567", Role: models.RoleCustomer})
	require.NoError(t, err)
	worker, err := st.CreateUser(ctx, &models.User{Name: "Rauf", Role: models.RoleProduction})
	require.NoError(t, err)

	o, err := st.CreateOrder(ctx, &models.Order{
		Barcode:        "AF2501150042",
		OrderNumber:    "ORD-1",
		TotalAmount:    decimal.RequireFromString("1250.50"),
		AdvancePayment: decimal.RequireFromString("250.50"),
		CustomerID:     customer.ID,
	})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusNew, o.Status)
	require.True(t, decimal.RequireFromString("1000").Equal(o.RemainingAmount))

	_, err = st.CreateOrder(ctx, &models.Order{Barcode: "AF2501150042", OrderNumber: "ORD-2", CustomerID: customer.ID})
	require.ErrorIs(t, err, ErrDuplicateBarcode)

	byCode, err := st.GetByBarcode(ctx, "AF2501150042")
	require.NoError(t, err)
	require.Equal(t, o.ID, byCode.ID)

	_, err = st.GetByBarcode(ctx, "NOPE")
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = st.GetByID(ctx, 999999)
	require.ErrorIs(t, err, models.ErrNotFound)

	exists, err := st.BarcodeExists(ctx, "AF2501150042")
	require.NoError(t, err)
	require.True(t, exists)

	// new -> processing
	at := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	updated, err := st.UpdateStatus(ctx, models.StatusChange{
		OrderID: o.ID, From: models.OrderStatusNew, To: models.OrderStatusProcessing,
		ActorID: worker.ID, Note: "started", At: at,
	})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusProcessing, updated.Status)
	require.NotNil(t, updated.ProcessingDate)
	require.True(t, at.Equal(*updated.ProcessingDate))

	// устаревший From: конфликт, ничего не пишется
	_, err = st.UpdateStatus(ctx, models.StatusChange{
		OrderID: o.ID, From: models.OrderStatusNew, To: models.OrderStatusCancelled, ActorID: worker.ID, At: at,
	})
	require.ErrorIs(t, err, models.ErrStatusConflict)

	_, err = st.UpdateStatus(ctx, models.StatusChange{
		OrderID: 999999, From: models.OrderStatusNew, To: models.OrderStatusProcessing, At: at,
	})
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = st.UpdateStatus(ctx, models.StatusChange{
		OrderID: o.ID, From: models.OrderStatusProcessing, To: models.OrderStatusCompleted, ActorID: worker.ID, At: at.Add(time.Hour),
	})
	require.NoError(t, err)

	sig := "data:image/png;base64,iVBORw0KGgo="
	// delivered_by на несуществующего пользователя: FK, транзакция откатывается
	_, err = st.UpdateStatus(ctx, models.StatusChange{
		OrderID: o.ID, From: models.OrderStatusCompleted, To: models.OrderStatusDelivered,
		ActorID: 999999, At: at.Add(2 * time.Hour), Signature: &sig,
	})
	require.ErrorIs(t, err, models.ErrInvalidActor)
	still, err := st.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCompleted, still.Status)

	delivered, err := st.UpdateStatus(ctx, models.StatusChange{
		OrderID: o.ID, From: models.OrderStatusCompleted, To: models.OrderStatusDelivered,
		ActorID: worker.ID, At: at.Add(2 * time.Hour), Signature: &sig,
	})
	require.NoError(t, err)
	require.Equal(t, worker.ID, *delivered.DeliveredBy)
	require.Equal(t, sig, *delivered.DeliverySignature)
	require.True(t, at.Equal(*delivered.ProcessingDate))

	hist, err := st.ListStatusHistory(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	require.Equal(t, models.OrderStatusNew, hist[0].From)
	require.Equal(t, "started", *hist[0].Note)
	require.Nil(t, hist[1].Note)
	require.Equal(t, models.OrderStatusDelivered, hist[2].To)
}

func TestPGOrders_LineItems(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	customer, err := st.CreateUser(ctx, &models.User{Name: "C", Role: models.RoleCustomer})
	require.NoError(t, err)
	o, err := st.CreateOrder(ctx, &models.Order{Barcode: "AF1", OrderNumber: "ORD-1", CustomerID: customer.ID})
	require.NoError(t, err)

	err = st.AddLineItems(ctx, o.ID,
		[]models.ProfileItem{{ProfileType: "slim", WidthCM: decimal.NewFromInt(120), HeightCM: decimal.NewFromInt(200), Quantity: 2}},
		[]models.GlassItem{{GlassType: "clear", WidthCM: decimal.NewFromInt(10), HeightCM: decimal.NewFromInt(10), Quantity: 1}},
	)
	require.NoError(t, err)

	profiles, err := st.ListProfileItems(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	require.True(t, decimal.NewFromInt(120).Equal(profiles[0].WidthCM))
	require.Equal(t, 2, profiles[0].Quantity)

	glass, err := st.ListGlassItems(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, glass, 1)
	require.Equal(t, "clear", glass[0].GlassType)
}

func TestPGOrders_NotificationsTemplatesActivity(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	u, err := st.CreateUser(ctx, &models.User{Name: "U", Role: models.RoleCustomer})
	require.NoError(t, err)
	other, err := st.CreateUser(ctx, &models.User{Name: "O", Role: models.RoleCustomer})
	require.NoError(t, err)

	_, err = st.GetUserByID(ctx, 999999)
	require.ErrorIs(t, err, models.ErrUserNotFound)

	// шаблоны статусов засеяны миграцией
	tpl, err := st.GetTemplate(ctx, "order_status_completed", models.ChannelWhatsApp)
	require.NoError(t, err)
	require.Equal(t, "order_status_completed", tpl.ProviderTemplate)
	_, err = st.GetTemplate(ctx, "missing", models.ChannelSystem)
	require.ErrorIs(t, err, models.ErrTemplateNotFound)

	require.NoError(t, st.UpsertTemplate(ctx, &models.NotificationTemplate{
		Code: "welcome", Channel: models.ChannelEmail, Subject: "Hi", Body: "Hello {{name}}", Language: "az",
	}))
	tpl, err = st.GetTemplate(ctx, "welcome", models.ChannelEmail)
	require.NoError(t, err)
	require.Equal(t, "Hello {{name}}", tpl.Body)

	n1, err := st.CreateNotification(ctx, &models.NotificationRecord{UserID: u.ID, Title: "a", Message: "m", Type: "order_status"})
	require.NoError(t, err)
	_, err = st.CreateNotification(ctx, &models.NotificationRecord{UserID: u.ID, Title: "b", Message: "m", Type: "order_status"})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.ErrorIs(t, st.MarkRead(ctx, other.ID, n1.ID, now), models.ErrNotFound)
	require.NoError(t, st.MarkRead(ctx, u.ID, n1.ID, now))
	require.NoError(t, st.MarkRead(ctx, u.ID, n1.ID, now))

	unread, err := st.ListUnread(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	n, err := st.MarkAllRead(ctx, u.ID, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = st.MarkAllRead(ctx, u.ID, now)
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, st.AppendActivity(ctx, models.ActivityEntry{
		ActorID: u.ID, ActionType: "whatsapp_failed", Description: "401", CreatedAt: now,
	}))
	acts, err := st.ListActivity(ctx, "whatsapp_failed", 10)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	require.Equal(t, "401", acts[0].Description)
}
