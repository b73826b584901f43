// Package drafts owns product drafts and their draft → published → unpublished
// lifecycle, including publication, soft deletion and the cached listing.
package drafts

import (
	"time"

	"github.com/odyssey-erp/catalog/internal/molecules"
	"github.com/odyssey-erp/catalog/internal/shared"
)

// Status is the publication state of a draft.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusPublished   Status = "published"
	StatusUnpublished Status = "unpublished"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusUnpublished:
		return true
	}
	return false
}

// UserRef is an expanded audit user.
type UserRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CategoryRef is the expanded category of a draft.
type CategoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Flags are the product status switches carried by drafts and products.
type Flags struct {
	IsBanned       bool `json:"is_banned"`
	IsActive       bool `json:"is_active"`
	IsDiscontinued bool `json:"is_discontinued"`
	IsAssured      bool `json:"is_assured"`
	IsRefrigerated bool `json:"is_refrigerated"`
}

// DefaultFlags are the flags of a freshly created draft.
func DefaultFlags() Flags {
	return Flags{IsActive: true}
}

// Draft is the mutable pre-publication representation of a product.
type Draft struct {
	ID           int64        `json:"id"`
	Code         *string      `json:"code"`
	Name         string       `json:"name"`
	Manufacturer string       `json:"manufacturer"`
	MRP          shared.Money `json:"mrp"`
	SalesPrice   shared.Money `json:"sales_price"`
	CategoryID   int64        `json:"category_id"`
	Combination  *string      `json:"combination"`
	MoleculeIDs  []int64      `json:"molecule_ids"`
	Status       Status       `json:"publish_status"`
	Flags

	CreatedBy   *int64     `json:"created_by"`
	UpdatedBy   *int64     `json:"updated_by"`
	DeletedBy   *int64     `json:"deleted_by"`
	PublishedBy *int64     `json:"published_by"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at"`

	Category  *CategoryRef `json:"category,omitempty"`
	Creator   *UserRef     `json:"creator,omitempty"`
	Updater   *UserRef     `json:"updater,omitempty"`
	Publisher *UserRef     `json:"publisher,omitempty"`
}

// Trashed reports whether the draft is soft-deleted.
func (d Draft) Trashed() bool {
	return d.DeletedAt != nil
}

// Input carries client supplied draft fields. Pointer fields distinguish an
// omitted value from a zero value.
type Input struct {
	Name         *string           `json:"name"`
	Manufacturer *string           `json:"manufacturer"`
	MRP          *shared.Money     `json:"mrp"`
	SalesPrice   *shared.Money     `json:"sales_price"`
	CategoryID   *int64            `json:"category_id"`
	MoleculeIDs  *molecules.IDList `json:"molecule_ids"`

	IsBanned       *bool `json:"is_banned"`
	IsActive       *bool `json:"is_active"`
	IsDiscontinued *bool `json:"is_discontinued"`
	IsAssured      *bool `json:"is_assured"`
	IsRefrigerated *bool `json:"is_refrigerated"`
}

// ListQuery narrows the cached listing.
type ListQuery struct {
	Page       int
	PerPage    int
	Status     Status
	ActiveOnly bool
}

// Page is one page of drafts.
type Page struct {
	Items      []Draft           `json:"data"`
	Pagination shared.Pagination `json:"meta"`
}

// PublishResult reports the outcome of a publish call.
type PublishResult struct {
	Draft            Draft `json:"draft"`
	AlreadyPublished bool  `json:"already_published"`
}

// BulkResult lists the ids a batch operation applied and the ids it did not.
type BulkResult struct {
	Succeeded []int64 `json:"success"`
	Failed    []int64 `json:"failed"`
}

// ReconcileRequest is the message handed to the reconciliation queue. It carries
// the draft code, never the draft itself.
type ReconcileRequest struct {
	DraftID     int64     `json:"draft_id"`
	Code        string    `json:"code"`
	PublishedAt time.Time `json:"published_at"`
}
