// Package store provides the persistence backends for challenges, personas and
// authentication events.
package store

import (
	"fmt"
	"sort"

	"github.com/layer-3/rola/core"
)

// storeError wraps a backend failure so callers can tell it apart from input errors
func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreOperationFailed, err)
}

func sortPersonas(personas []core.Persona) {
	sort.Slice(personas, func(i, j int) bool {
		if personas[i].CreatedAt.Equal(personas[j].CreatedAt) {
			return personas[i].WalletAddress < personas[j].WalletAddress
		}
		return personas[i].CreatedAt.Before(personas[j].CreatedAt)
	})
}
