// Package identity derives stable Firestore document IDs for event listings
// so that re-running the sync updates existing records instead of
// duplicating them.
package identity

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/citypulse/eventsync/internal/models"
)

// DeriveID produces a deterministic, URL-safe document ID for a listing.
//
// The canonical identity string is the listing link when present. Titles are
// free text under the source's control and can vary formatting run to run,
// so title+date is only the fallback for listings without a link. The
// encoded form strips the characters Firestore treats specially in document
// paths.
func DeriveID(listing models.RawListing) string {
	idString := listing.Link
	if idString == "" {
		idString = fmt.Sprintf("%s-%s", listing.Title, listing.WhenText())
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(idString))
	replacer := strings.NewReplacer("+", "", "/", "", "=", "")
	return replacer.Replace(encoded)
}
