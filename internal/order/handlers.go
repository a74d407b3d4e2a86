package order

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/cafe-api/internal/common"
	"github.com/noah-isme/cafe-api/internal/pricing"
)

// Handler exposes quoting and order endpoints.
type Handler struct {
	Service *Service
}

// DeliveryResponse describes the delivery leg of a quote.
type DeliveryResponse struct {
	Available  bool     `json:"available"`
	DistanceKm *float64 `json:"distanceKm,omitempty"`
	Fee        *string  `json:"fee,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// QuoteLineResponse is one priced line.
type QuoteLineResponse struct {
	ItemID    int64  `json:"itemId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	LineTotal string `json:"lineTotal"`
}

// QuoteResponse is the public form of a pricing.Summary.
type QuoteResponse struct {
	Lines        []QuoteLineResponse `json:"lines"`
	ItemSubtotal string              `json:"itemSubtotal"`
	Delivery     DeliveryResponse    `json:"delivery"`
	DeliveryFee  *string             `json:"deliveryFee,omitempty"`
	GrandTotal   *string             `json:"grandTotal,omitempty"`
}

// LineResponse is a stored order line.
type LineResponse struct {
	ID        int64  `json:"id"`
	ItemID    int64  `json:"itemId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	LineTotal string `json:"lineTotal"`
}

// OrderResponse is the public form of an Order.
type OrderResponse struct {
	ID           int64          `json:"id"`
	Address      string         `json:"address"`
	PostalCode   string         `json:"postalCode"`
	DistanceKm   float64        `json:"distanceKm"`
	ItemSubtotal string         `json:"itemSubtotal"`
	DeliveryFee  string         `json:"deliveryFee"`
	Total        string         `json:"total"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
	Lines        []LineResponse `json:"lines"`
}

// formatFee renders delivery fees at the one decimal place the tier table uses.
func formatFee(fee decimal.Decimal) string {
	return fee.StringFixed(1)
}

func deliveryResponse(d pricing.DeliveryQuote) DeliveryResponse {
	out := DeliveryResponse{Available: d.Available}
	if d.Available || d.Reason == pricing.ReasonOutOfRange {
		km := d.DistanceKm
		out.DistanceKm = &km
	}
	if d.Available {
		fee := formatFee(d.Fee)
		out.Fee = &fee
	} else {
		out.Reason = string(d.Reason)
	}
	return out
}

// QuoteToResponse renders a Summary for the API.
func QuoteToResponse(s pricing.Summary) QuoteResponse {
	out := QuoteResponse{
		Lines:        make([]QuoteLineResponse, 0, len(s.Lines)),
		ItemSubtotal: s.ItemSubtotal.StringFixed(2),
		Delivery:     deliveryResponse(s.Delivery),
	}
	for _, line := range s.Lines {
		out.Lines = append(out.Lines, QuoteLineResponse{
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.StringFixed(2),
			LineTotal: line.LineTotal.StringFixed(2),
		})
	}
	if s.DeliveryFee != nil {
		fee := formatFee(*s.DeliveryFee)
		out.DeliveryFee = &fee
	}
	if s.GrandTotal != nil {
		total := s.GrandTotal.StringFixed(2)
		out.GrandTotal = &total
	}
	return out
}

// ToResponse renders an Order for the API.
func ToResponse(o Order) OrderResponse {
	out := OrderResponse{
		ID:           o.ID,
		Address:      o.Address,
		PostalCode:   o.PostalCode,
		DistanceKm:   o.DistanceKm,
		ItemSubtotal: o.ItemSubtotal.StringFixed(2),
		DeliveryFee:  formatFee(o.DeliveryFee),
		Total:        o.Total.StringFixed(2),
		Status:       o.Status,
		CreatedAt:    o.CreatedAt,
		Lines:        make([]LineResponse, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		out.Lines = append(out.Lines, LineResponse{
			ID:        l.ID,
			ItemID:    l.ItemID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			LineTotal: l.LineTotal.StringFixed(2),
		})
	}
	return out
}

// Quote handles POST /api/v1/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	var in QuoteInput
	if err := common.DecodeJSON(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	summary, err := h.Service.Quote(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": QuoteToResponse(summary)})
}

// Place handles POST /api/v1/orders.
func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var in PlaceInput
	if err := common.DecodeJSON(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	o, err := h.Service.Place(r.Context(), id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": ToResponse(o)})
}

// Get handles GET /api/v1/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orderID, err := ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	o, err := h.Service.Get(r.Context(), id, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ToResponse(o)})
}

// ListMine handles GET /api/v1/me/orders.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orders, err := h.Service.ListMine(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToResponse(o))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Latest handles GET /api/v1/me/orders/latest.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	o, err := h.Service.Latest(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ToResponse(o)})
}

// AddItem handles POST /api/v1/orders/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orderID, err := ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in AddItemInput
	if err := common.DecodeJSON(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	o, err := h.Service.AddItem(r.Context(), id, orderID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ToResponse(o)})
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (common.Identity, bool) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return common.Identity{}, false
	}
	id, ok := common.IdentityFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return common.Identity{}, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, err)
}
