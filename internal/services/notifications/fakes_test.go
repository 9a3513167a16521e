package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/BearBump/FabOrders/internal/integrations/whatsapp"
	"github.com/BearBump/FabOrders/internal/models"
)

type userStoreMock struct{ mock.Mock }

func (m *userStoreMock) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

type orderReaderMock struct{ mock.Mock }

func (m *orderReaderMock) GetByID(ctx context.Context, id uint64) (*models.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

type publisherMock struct{ mock.Mock }

func (m *publisherMock) PublishJSON(ctx context.Context, topic, key string, v any) error {
	return m.Called(ctx, topic, key, v).Error(0)
}

// templateTable: шаблоны в памяти, ключ code/channel.
type templateTable map[string]*models.NotificationTemplate

func (t templateTable) GetTemplate(_ context.Context, code string, ch models.Channel) (*models.NotificationTemplate, error) {
	if tpl, ok := t[code+"/"+string(ch)]; ok {
		return tpl, nil
	}
	return nil, models.ErrTemplateNotFound
}

func (t templateTable) add(tpl *models.NotificationTemplate) {
	t[tpl.Code+"/"+string(tpl.Channel)] = tpl
}

type memInbox struct {
	mu      sync.Mutex
	records []*models.NotificationRecord
	err     error

	markReadAt time.Time
}

func (m *memInbox) CreateNotification(_ context.Context, n *models.NotificationRecord) (*models.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := *n
	out.ID = uint64(len(m.records) + 1)
	m.records = append(m.records, &out)
	return &out, nil
}

func (m *memInbox) MarkRead(_ context.Context, userID, id uint64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markReadAt = at
	for _, r := range m.records {
		if r.ID == id && r.UserID == userID {
			r.IsRead = true
			r.ReadAt = &at
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memInbox) MarkAllRead(_ context.Context, userID uint64, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.records {
		if r.UserID == userID && !r.IsRead {
			r.IsRead = true
			r.ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (m *memInbox) ListUnread(_ context.Context, userID uint64, _ int) ([]*models.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.NotificationRecord
	for _, r := range m.records {
		if r.UserID == userID && !r.IsRead {
			out = append(out, r)
		}
	}
	return out, nil
}

type activityEntry struct {
	ActorID     uint64
	Action      string
	Description string
}

type memActivity struct {
	mu      sync.Mutex
	entries []activityEntry
}

func (a *memActivity) Record(_ context.Context, actorID uint64, action, desc string) {
	a.mu.Lock()
	a.entries = append(a.entries, activityEntry{ActorID: actorID, Action: action, Description: desc})
	a.mu.Unlock()
}

func (a *memActivity) count(action string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

type sentWhatsApp struct {
	To       string
	Text     string
	Template *whatsapp.Template
}

type fakeSender struct {
	sent []sentWhatsApp
	err  error
}

func (f *fakeSender) SendText(_ context.Context, to, body string) (whatsapp.SendResult, error) {
	f.sent = append(f.sent, sentWhatsApp{To: to, Text: body})
	return whatsapp.SendResult{MessageID: "wamid.1", To: to}, f.err
}

func (f *fakeSender) SendTemplate(_ context.Context, to string, tpl whatsapp.Template) (whatsapp.SendResult, error) {
	f.sent = append(f.sent, sentWhatsApp{To: to, Template: &tpl})
	return whatsapp.SendResult{MessageID: "wamid.2", To: to}, f.err
}

type fakeLimiter struct {
	allow bool
	err   error
	calls int
}

func (l *fakeLimiter) AllowPerMinute(context.Context, string, int64, time.Time) (bool, error) {
	l.calls++
	return l.allow, l.err
}
