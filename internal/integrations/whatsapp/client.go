package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultBaseURL = "https://graph.facebook.com/v18.0"

	DefaultTimeout = 5 * time.Second
	// MaxTimeout is a hard cap: a send must never hold the caller longer.
	MaxTimeout = 9 * time.Second

	maxResponseBytes = 1 << 20
)

type Template struct {
	Name     string
	Language string
	Params   []string
}

type SendResult struct {
	MessageID string
	To        string
}

type Client struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	timeout       time.Duration
	httpc         *http.Client
}

func New(baseURL, phoneNumberID, accessToken string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout = clampTimeout(timeout)
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		timeout:       timeout,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

func clampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	if d > MaxTimeout {
		return MaxTimeout
	}
	return d
}

func (c *Client) Timeout() time.Duration { return c.timeout }

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateBody struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type messageRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	RecipientType    string        `json:"recipient_type"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textBody     `json:"text,omitempty"`
	Template         *templateBody `json:"template,omitempty"`
}

type apiErrorBody struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

type messageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiErrorBody `json:"error,omitempty"`
}

// SendText sends a free-text message.
func (c *Client) SendText(ctx context.Context, to, body string) (SendResult, error) {
	phone := NormalizePhone(to)
	return c.send(ctx, messageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               phone,
		Type:             "text",
		Text:             &textBody{Body: body},
	})
}

// SendTemplate sends a provider-approved template; Params fill {{1}}, {{2}}, ... in order.
func (c *Client) SendTemplate(ctx context.Context, to string, tpl Template) (SendResult, error) {
	if tpl.Name == "" {
		return SendResult{}, errors.New("template name is required")
	}
	lang := tpl.Language
	if lang == "" {
		lang = "az"
	}
	tb := &templateBody{
		Name:     tpl.Name,
		Language: templateLanguage{Code: lang},
	}
	if len(tpl.Params) > 0 {
		params := make([]templateParameter, 0, len(tpl.Params))
		for _, p := range tpl.Params {
			params = append(params, templateParameter{Type: "text", Text: p})
		}
		tb.Components = []templateComponent{{Type: "body", Parameters: params}}
	}

	return c.send(ctx, messageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               NormalizePhone(to),
		Type:             "template",
		Template:         tb,
	})
}

func (c *Client) send(ctx context.Context, msg messageRequest) (SendResult, error) {
	if msg.To == "" {
		return SendResult{}, errors.New("recipient phone is empty")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return SendResult{}, errors.Wrap(err, "marshal message")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return SendResult{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return SendResult{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return SendResult{}, &TransportError{Err: errors.Wrap(err, "read response")}
	}

	var mr messageResponse
	decodeErr := json.Unmarshal(raw, &mr)

	if resp.StatusCode/100 != 2 || mr.Error != nil {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if mr.Error != nil {
			apiErr.Code = mr.Error.Code
			apiErr.Type = mr.Error.Type
			apiErr.Message = mr.Error.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return SendResult{}, apiErr
	}
	if decodeErr != nil {
		return SendResult{}, errors.Wrap(decodeErr, "decode response")
	}

	res := SendResult{To: msg.To}
	if len(mr.Messages) > 0 {
		res.MessageID = mr.Messages[0].ID
	}
	return res, nil
}
