package ordersapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/BearBump/FabOrders/internal/models"
	"github.com/BearBump/FabOrders/internal/services/materials"
	"github.com/BearBump/FabOrders/internal/services/notifications"
)

type transitionRequest struct {
	Status  string `json:"status"`
	ActorID uint64 `json:"actorId"`
	Note    string `json:"note"`
}

type deliveryRequest struct {
	ActorID   uint64 `json:"actorId"`
	Signature string `json:"signature"`
}

type variable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type notifyRequest struct {
	UserID       uint64     `json:"userId"`
	TemplateCode string     `json:"templateCode"`
	Channel      string     `json:"channel"`
	ActorID      uint64     `json:"actorId"`
	Variables    []variable `json:"variables"`
}

func (r notifyRequest) toRequest() notifications.Request {
	vars := make(notifications.Variables, 0, len(r.Variables))
	for _, v := range r.Variables {
		vars = vars.Set(v.Key, v.Value)
	}
	return notifications.Request{
		UserID:       r.UserID,
		TemplateCode: r.TemplateCode,
		Variables:    vars,
		Channel:      models.Channel(r.Channel),
		ActorID:      r.ActorID,
	}
}

type notifyResponse struct {
	Outcome   string `json:"outcome"`
	Channel   string `json:"channel"`
	Reason    string `json:"reason,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

func toNotifyResponse(res notifications.Result) notifyResponse {
	return notifyResponse{
		Outcome:   string(res.Outcome),
		Channel:   string(res.Channel),
		Reason:    res.Reason,
		MessageID: res.MessageID,
	}
}

type orderResponse struct {
	ID              uint64          `json:"id"`
	Barcode         string          `json:"barcode"`
	OrderNumber     string          `json:"orderNumber"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	AdvancePayment  decimal.Decimal `json:"advancePayment"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	ProcessingDate  *time.Time      `json:"processingDate,omitempty"`
	CompletionDate  *time.Time      `json:"completionDate,omitempty"`
	DeliveryDate    *time.Time      `json:"deliveryDate,omitempty"`
	DeliveredBy     *uint64         `json:"deliveredBy,omitempty"`
	HasSignature    bool            `json:"hasSignature"`
	CustomerID      uint64          `json:"customerId"`
	SellerID        *uint64         `json:"sellerId,omitempty"`
	BranchID        *uint64         `json:"branchId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Подпись (base64) в ответ не отдаём, только факт наличия.
func toOrderResponse(o *models.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		Barcode:         o.Barcode,
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount,
		AdvancePayment:  o.AdvancePayment,
		RemainingAmount: o.RemainingAmount,
		ProcessingDate:  o.ProcessingDate,
		CompletionDate:  o.CompletionDate,
		DeliveryDate:    o.DeliveryDate,
		DeliveredBy:     o.DeliveredBy,
		HasSignature:    o.DeliverySignature != nil && *o.DeliverySignature != "",
		CustomerID:      o.CustomerID,
		SellerID:        o.SellerID,
		BranchID:        o.BranchID,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type requirementResponse struct {
	Material string          `json:"material"`
	Label    string          `json:"label"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
}

type materialsResponse struct {
	OrderID      uint64                `json:"orderId"`
	ProfileTotal decimal.Decimal       `json:"profileTotalM"`
	GlassArea    decimal.Decimal       `json:"glassAreaM2"`
	Requirements []requirementResponse `json:"requirements"`
}

func toRequirements(reqs []materials.Requirement) []requirementResponse {
	out := make([]requirementResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, requirementResponse{
			Material: r.Material,
			Label:    r.Label,
			Quantity: r.Value,
			Unit:     r.Unit,
		})
	}
	return out
}

type notificationResponse struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

func toNotifications(items []*models.NotificationRecord) []notificationResponse {
	out := make([]notificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, notificationResponse{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

type historyResponse struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	ActorID   uint64    `json:"actorId"`
	Note      string    `json:"note,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}

func toHistory(entries []*models.StatusHistoryEntry) []historyResponse {
	out := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		h := historyResponse{
			From:      string(e.From),
			To:        string(e.To),
			ActorID:   e.ActorID,
			ChangedAt: e.ChangedAt,
		}
		if e.Note != nil {
			h.Note = *e.Note
		}
		out = append(out, h)
	}
	return out
}
