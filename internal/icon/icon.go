// Package icon maps vault icon references to display identifiers.
package icon

import (
	"encoding/base64"

	"github.com/google/uuid"

	"github.com/illarion/keevault/internal/domain"
)

// Resolve returns the display identifier for an icon reference. A custom
// icon resolves to a PNG data URI from the vault's icon table; a standard
// index resolves through the Standard catalog. Custom wins when both are
// given. The second result is false when nothing matches.
func Resolve(db *domain.Database, custom *uuid.UUID, standard *int) (string, bool) {
	switch {
	case custom != nil:
		if db == nil {
			return "", false
		}
		ci, ok := db.CustomIcon(*custom)
		if !ok {
			return "", false
		}
		return "data:image/png;base64," + base64.StdEncoding.EncodeToString(ci.Data), true
	case standard != nil:
		if *standard < 0 || *standard >= len(Standard) {
			return "", false
		}
		return Standard[*standard], true
	default:
		return "", false
	}
}

// ResolveRef is Resolve for an IconRef
func ResolveRef(db *domain.Database, ref domain.IconRef) (string, bool) {
	return Resolve(db, ref.Custom, ref.Standard)
}
