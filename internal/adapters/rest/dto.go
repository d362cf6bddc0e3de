package rest

import (
	"time"

	"checkout/internal/balance"
	"checkout/internal/orders"

	"github.com/shopspring/decimal"
)

// envelope is the response body of every route.
type envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    any      `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

type orderItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0,lte=100"`
}

type createOrderRequest struct {
	CustomerEmail string             `json:"customerEmail" validate:"required,email,max=255"`
	CustomerName  string             `json:"customerName" validate:"required,max=200"`
	Items         []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r createOrderRequest) toDomain() orders.CreateOrderRequest {
	items := make([]orders.ItemRequest, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, orders.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return orders.CreateOrderRequest{
		CustomerEmail: r.CustomerEmail,
		CustomerName:  r.CustomerName,
		Items:         items,
	}
}

type lineItemResponse struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

type orderResponse struct {
	ID               string             `json:"id"`
	CustomerEmail    string             `json:"customerEmail"`
	CustomerName     string             `json:"customerName"`
	TotalAmount      decimal.Decimal    `json:"totalAmount"`
	Status           string             `json:"status"`
	PaymentReference string             `json:"paymentReference,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
	Items            []lineItemResponse `json:"items"`
}

func newOrderResponse(o *orders.Order) orderResponse {
	items := make([]lineItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, lineItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}
	return orderResponse{
		ID:               o.ID,
		CustomerEmail:    o.CustomerEmail,
		CustomerName:     o.CustomerName,
		TotalAmount:      o.TotalAmount,
		Status:           string(o.Status),
		PaymentReference: o.PaymentReference,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		Items:            items,
	}
}

type productResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
}

func newProductResponses(products []balance.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, productResponse(p))
	}
	return out
}
