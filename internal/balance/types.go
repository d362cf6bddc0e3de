package balance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the provider's catalog entry.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
}

// ProductsResponse is the payload of GET /api/products.
type ProductsResponse struct {
	Success bool      `json:"success"`
	Data    []Product `json:"data"`
}

// Snapshot is an advisory, point-in-time balance reading.
type Snapshot struct {
	TotalBalance     decimal.Decimal `json:"totalBalance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	BlockedBalance   decimal.Decimal `json:"blockedBalance"`
	Currency         string          `json:"currency"`
	LastUpdated      time.Time       `json:"lastUpdated"`
}

// BalanceResponse is the payload of GET /api/balance.
type BalanceResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    Snapshot `json:"data"`
}

// PreOrder is a reservation held by the provider.
type PreOrder struct {
	OrderID     string          `json:"orderId"`
	Amount      decimal.Decimal `json:"amount"`
	Timestamp   time.Time       `json:"timestamp"`
	Status      string          `json:"status"`
	CompletedAt *time.Time      `json:"completedAt"`
	CancelledAt *time.Time      `json:"cancelledAt"`
}

// ReserveResponse is the payload of POST /api/balance/preorder.
type ReserveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		PreOrder       PreOrder `json:"preOrder"`
		UpdatedBalance Snapshot `json:"updatedBalance"`
	} `json:"data"`
}

// CaptureResponse is the payload of POST /api/balance/complete.
type CaptureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Order          PreOrder `json:"order"`
		UpdatedBalance Snapshot `json:"updatedBalance"`
	} `json:"data"`
}
