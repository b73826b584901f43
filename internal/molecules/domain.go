// Package molecules resolves molecule sets into combination fingerprints.
package molecules

// Molecule is an active ingredient that can be combined into a product.
type Molecule struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}
