package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/BearBump/FabOrders/internal/integrations/whatsapp"
)

// Client: песочница вместо Cloud API: ничего не отправляет, запоминает сообщения.
// Message ID детерминирован по (to, содержимое).
type Client struct {
	mu   sync.Mutex
	sent []Sent
}

type Sent struct {
	To       string
	Text     string
	Template *whatsapp.Template
}

func New() *Client { return &Client{} }

func (c *Client) SendText(ctx context.Context, to, body string) (whatsapp.SendResult, error) {
	phone := whatsapp.NormalizePhone(to)
	c.remember(Sent{To: phone, Text: body})
	return whatsapp.SendResult{MessageID: messageID(phone, body), To: phone}, nil
}

func (c *Client) SendTemplate(ctx context.Context, to string, tpl whatsapp.Template) (whatsapp.SendResult, error) {
	phone := whatsapp.NormalizePhone(to)
	t := tpl
	c.remember(Sent{To: phone, Template: &t})
	return whatsapp.SendResult{MessageID: messageID(phone, tpl.Name), To: phone}, nil
}

func (c *Client) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sent, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *Client) remember(s Sent) {
	c.mu.Lock()
	c.sent = append(c.sent, s)
	c.mu.Unlock()
}

func messageID(to, content string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(to))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(content))
	return fmt.Sprintf("wamid.fake.%x", h.Sum64())
}
