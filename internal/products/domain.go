// Package products maintains the canonical product table, projecting published
// drafts onto it.
package products

import (
	"time"

	"github.com/odyssey-erp/catalog/internal/shared"
)

// Product is the canonical, published catalog entry. Code is its identity.
type Product struct {
	ID           int64        `json:"id"`
	Code         string       `json:"code"`
	Name         string       `json:"name"`
	Manufacturer string       `json:"manufacturer"`
	MRP          shared.Money `json:"mrp"`
	SalesPrice   shared.Money `json:"sales_price"`
	CategoryID   *int64       `json:"category_id"`
	Combination  *string      `json:"combination"`

	IsBanned       bool `json:"is_banned"`
	IsActive       bool `json:"is_active"`
	IsDiscontinued bool `json:"is_discontinued"`
	IsAssured      bool `json:"is_assured"`
	IsRefrigerated bool `json:"is_refrigerated"`

	CreatedBy   *int64     `json:"created_by"`
	PublishedBy *int64     `json:"published_by"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at"`
}

// Source is the published draft state a product is reconciled from.
type Source struct {
	DraftID      int64
	Code         string
	Name         string
	Manufacturer string
	MRP          shared.Money
	SalesPrice   shared.Money
	CategoryID   int64
	Combination  *string
	Status       string
	Trashed      bool

	// Draft-side flags. A published product always starts from the
	// freshly published defaults regardless of these.
	IsBanned       bool
	IsActive       bool
	IsDiscontinued bool
	IsAssured      bool
	IsRefrigerated bool

	CreatedBy   *int64
	PublishedBy *int64
	PublishedAt *time.Time
}

// Published reports whether the draft is live and in the published state.
func (s Source) Published() bool {
	return s.Status == "published" && !s.Trashed
}

// apply copies the draft fields onto p, keeping its identity, and resets the
// flags to the freshly published defaults.
func (s Source) apply(p Product) Product {
	p.Code = s.Code
	p.Name = s.Name
	p.Manufacturer = s.Manufacturer
	p.MRP = s.MRP
	p.SalesPrice = s.SalesPrice
	category := s.CategoryID
	p.CategoryID = &category
	p.Combination = s.Combination
	p.IsBanned = false
	p.IsActive = true
	p.IsDiscontinued = false
	p.IsAssured = false
	p.IsRefrigerated = false
	p.CreatedBy = s.CreatedBy
	p.PublishedBy = s.PublishedBy
	p.PublishedAt = s.PublishedAt
	p.DeletedAt = nil
	return p
}

// Outcome names the path a reconciliation took.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeRecreated Outcome = "recreated"
)

// Request identifies the draft to project. Only the code is authoritative;
// DraftID guards against a code that has since moved to another draft.
type Request struct {
	DraftID int64
	Code    string
}

// Result reports a completed reconciliation.
type Result struct {
	Outcome Outcome
	Product Product
}

// Snapshot is the flattened product handed to the downstream search feed.
type Snapshot struct {
	ID             int64        `json:"id"`
	Code           string       `json:"code"`
	Name           string       `json:"name"`
	Manufacturer   string       `json:"manufacturer"`
	Combination    string       `json:"combination"`
	MRP            shared.Money `json:"mrp"`
	SalesPrice     shared.Money `json:"sales_price"`
	IsBanned       bool         `json:"is_banned"`
	IsActive       bool         `json:"is_active"`
	IsDiscontinued bool         `json:"is_discontinued"`
	IsAssured      bool         `json:"is_assured"`
	IsRefrigerated bool         `json:"is_refrigerated"`
	PublishedAt    *time.Time   `json:"published_at"`
}

// SnapshotOf flattens p for the search feed.
func SnapshotOf(p Product) Snapshot {
	s := Snapshot{
		ID:             p.ID,
		Code:           p.Code,
		Name:           p.Name,
		Manufacturer:   p.Manufacturer,
		MRP:            p.MRP,
		SalesPrice:     p.SalesPrice,
		IsBanned:       p.IsBanned,
		IsActive:       p.IsActive,
		IsDiscontinued: p.IsDiscontinued,
		IsAssured:      p.IsAssured,
		IsRefrigerated: p.IsRefrigerated,
		PublishedAt:    p.PublishedAt,
	}
	if p.Combination != nil {
		s.Combination = *p.Combination
	}
	return s
}
