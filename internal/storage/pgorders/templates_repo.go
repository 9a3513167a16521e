package pgorders

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/FabOrders/internal/models"
)

func (s *Storage) GetTemplate(ctx context.Context, code string, channel models.Channel) (*models.NotificationTemplate, error) {
	var t models.NotificationTemplate
	err := s.db.QueryRow(ctx, `
SELECT code, channel, subject, body, provider_template, language
FROM notification_templates
WHERE code = $1 AND channel = $2
`, code, channel).Scan(&t.Code, &t.Channel, &t.Subject, &t.Body, &t.ProviderTemplate, &t.Language)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrTemplateNotFound, "%s/%s", code, channel)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select template")
	}
	return &t, nil
}

func (s *Storage) UpsertTemplate(ctx context.Context, t *models.NotificationTemplate) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO notification_templates (code, channel, subject, body, provider_template, language)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (code, channel) DO UPDATE SET
  subject = EXCLUDED.subject,
  body = EXCLUDED.body,
  provider_template = EXCLUDED.provider_template,
  language = EXCLUDED.language
`, t.Code, t.Channel, t.Subject, t.Body, t.ProviderTemplate, t.Language)
	return errors.Wrap(err, "upsert template")
}
