package molecules

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Separator joins molecule names inside a combination fingerprint.
const Separator = "+"

var (
	// ErrInvalidMolecules indicates that at least one id is missing or inactive.
	ErrInvalidMolecules = errors.New("one or more molecules are invalid or inactive")
	// ErrFingerprint indicates that a combination could not be derived from valid molecules.
	ErrFingerprint = errors.New("failed to generate molecule combination")
)

// InvalidMoleculesError lists the ids that failed the active-molecule check.
type InvalidMoleculesError struct {
	IDs []int64
}

func (e *InvalidMoleculesError) Error() string {
	parts := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidMolecules.Error(), strings.Join(parts, ", "))
}

// Is lets errors.Is match ErrInvalidMolecules.
func (e *InvalidMoleculesError) Is(target error) bool {
	return target == ErrInvalidMolecules
}

// Lookup loads the active molecules among ids. Inactive and unknown ids are
// simply absent from the result.
type Lookup interface {
	ActiveByIDs(ctx context.Context, ids []int64) ([]Molecule, error)
}

// NormalizeIDs returns ids deduplicated and sorted ascending.
func NormalizeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// Fingerprint joins the distinct names in ascending byte order. Names are
// taken as stored and compared byte for byte.
func Fingerprint(names []string) (string, error) {
	if len(names) == 0 {
		return "", ErrFingerprint
	}
	sorted := make([]string, 0, len(names))
	for _, name := range names {
		// A separator inside a name would make two different sets collide.
		if strings.TrimSpace(name) == "" || strings.Contains(name, Separator) {
			return "", fmt.Errorf("%w: unusable molecule name %q", ErrFingerprint, name)
		}
		sorted = append(sorted, name)
	}
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return strings.Join(sorted, Separator), nil
}

// Resolve validates ids against the active molecules and returns the combination
// fingerprint. An empty set yields nil without error.
func Resolve(ctx context.Context, lookup Lookup, ids []int64) (*string, error) {
	ids = NormalizeIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	if lookup == nil {
		return nil, errors.New("molecules: lookup not configured")
	}

	found, err := lookup.ActiveByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("molecules: load active: %w", err)
	}

	byID := make(map[int64]Molecule, len(found))
	for _, m := range found {
		if m.IsActive {
			byID[m.ID] = m
		}
	}
	var missing []int64
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		names = append(names, m.Name)
	}
	if len(missing) > 0 {
		return nil, &InvalidMoleculesError{IDs: missing}
	}

	combination, err := Fingerprint(names)
	if err != nil {
		return nil, err
	}
	return &combination, nil
}
