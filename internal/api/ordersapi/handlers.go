package ordersapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/FabOrders/internal/models"
	"github.com/BearBump/FabOrders/internal/services/materials"
)

func uintParam(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || v == 0 {
		return 0, errors.Errorf("invalid %s", name)
	}
	return v, nil
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (a *OrdersAPI) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
}

func (a *OrdersAPI) RequestTransition(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		a.badRequest(w, r, err)
		return
	}
	var req transitionRequest
	if err := decode(r, &req); err != nil {
		a.badRequest(w, r, errors.Wrap(err, "decode body"))
		return
	}

	o, err := a.lifecycle.RequestTransition(r.Context(), id, models.OrderStatus(req.Status), req.ActorID, req.Note)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (a *OrdersAPI) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		a.badRequest(w, r, err)
		return
	}
	var req deliveryRequest
	if err := decode(r, &req); err != nil {
		a.badRequest(w, r, errors.Wrap(err, "decode body"))
		return
	}

	o, err := a.lifecycle.MarkDelivered(r.Context(), id, req.ActorID, req.Signature)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (a *OrdersAPI) GetByBarcode(w http.ResponseWriter, r *http.Request) {
	o, err := a.barcodes.ResolveByBarcode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (a *OrdersAPI) GetMaterials(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		a.badRequest(w, r, err)
		return
	}
	ctx := r.Context()

	// неизвестный заказ: 404, а не нулевой расход
	if _, err := a.items.GetByID(ctx, id); err != nil {
		a.fail(w, r, err)
		return
	}
	profiles, err := a.items.ListProfileItems(ctx, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	glass, err := a.items.ListGlassItems(ctx, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	lengths, err := materials.ComputeProfileLengths(profiles)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	area, err := materials.ComputeGlassArea(glass)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	reqs, err := materials.AggregateMaterialRequirements(profiles, glass)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, materialsResponse{
		OrderID:      id,
		ProfileTotal: lengths.Total,
		GlassArea:    area,
		Requirements: toRequirements(materials.Sorted(reqs)),
	})
}

func (a *OrdersAPI) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		a.badRequest(w, r, err)
		return
	}
	if _, err := a.items.GetByID(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	entries, err := a.items.ListStatusHistory(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistory(entries))
}

func (a *OrdersAPI) GenerateBarcode(w http.ResponseWriter, r *http.Request) {
	code, err := a.barcodes.GenerateUnique(r.Context(), a.clock(), barcodeAttempts)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"barcode": code})
}

func (a *OrdersAPI) Notify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := decode(r, &req); err != nil {
		a.badRequest(w, r, errors.Wrap(err, "decode body"))
		return
	}
	if req.UserID == 0 || req.TemplateCode == "" {
		a.badRequest(w, r, errors.New("userId and templateCode are required"))
		return
	}

	res, err := a.notifications.Notify(r.Context(), req.toRequest())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	// Skipped/Failed по каналу: не ошибка запроса, исход в теле.
	writeJSON(w, http.StatusOK, toNotifyResponse(res))
}

func (a *OrdersAPI) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := uintParam(r, "userID")
	if err != nil {
		a.badRequest(w, r, err)
		return
	}
	id, err := uintParam(r, "id")
	if err != nil {
		a.badRequest(w, r, err)
		return
	}
	if err := a.notifications.MarkRead(r.Context(), userID, id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *OrdersAPI) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, err := uintParam(r, "userID")
	if err != nil {
		a.badRequest(w, r, err)
		return
	}
	n, err := a.notifications.MarkAllRead(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (a *OrdersAPI) ListUnread(w http.ResponseWriter, r *http.Request) {
	userID, err := uintParam(r, "userID")
	if err != nil {
		a.badRequest(w, r, err)
		return
	}
	limit := defaultUnreadSize
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			a.badRequest(w, r, errors.New("invalid limit"))
			return
		}
		limit = min(n, maxUnreadSize)
	}

	items, err := a.notifications.ListUnread(r.Context(), userID, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNotifications(items))
}
