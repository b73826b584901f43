package drafts

import (
	"context"
	"fmt"
)

// CodeWidth is the zero-padded width of sequential product codes.
const CodeWidth = 6

// CodeAllocator assigns the permanent product code on first publish.
type CodeAllocator interface {
	Allocate(ctx context.Context, tx TxStore) (string, error)
}

// SequentialAllocator hands out MAX(code)+1, zero padded. The sequence lock is
// held until the publishing transaction ends, so concurrent publishes observe
// each other's codes; the unique constraint on code backs it up.
type SequentialAllocator struct {
	Width int
}

// Allocate implements CodeAllocator.
func (a SequentialAllocator) Allocate(ctx context.Context, tx TxStore) (string, error) {
	if err := tx.LockCodeSequence(ctx); err != nil {
		return "", fmt.Errorf("drafts: lock code sequence: %w", err)
	}
	latest, err := tx.MaxNumericCode(ctx)
	if err != nil {
		return "", fmt.Errorf("drafts: read latest code: %w", err)
	}
	return FormatCode(latest+1, a.Width), nil
}

// FormatCode renders n zero padded to width digits (CodeWidth when width <= 0).
func FormatCode(n int64, width int) string {
	if width <= 0 {
		width = CodeWidth
	}
	return fmt.Sprintf("%0*d", width, n)
}
