package messages

import "time"

// EmailRequested: задание для почтового воркера. SMTP в этом сервисе нет.
type EmailRequested struct {
	MessageID string    `json:"message_id"`
	UserID    uint64    `json:"user_id"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Template  string    `json:"template"`
	CreatedAt time.Time `json:"created_at"`
}
