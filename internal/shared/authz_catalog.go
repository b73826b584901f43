package shared

// Catalog permissions.
const (
	PermProductDraftView        = "product_drafts.view"
	PermProductDraftEdit        = "product_drafts.edit"
	PermProductDraftPublish     = "product_drafts.publish"
	PermProductDraftDelete      = "product_drafts.delete"
	PermProductDraftForceDelete = "product_drafts.force_delete"
)

// CatalogScopes lists all permissions related to product drafts.
func CatalogScopes() []string {
	return []string{
		PermProductDraftView,
		PermProductDraftEdit,
		PermProductDraftPublish,
		PermProductDraftDelete,
		PermProductDraftForceDelete,
	}
}
