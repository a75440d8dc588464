package identity

import (
	"strings"
	"testing"

	"github.com/citypulse/eventsync/internal/models"
)

func TestDeriveID_PrefersLink(t *testing.T) {
	withLink := models.RawListing{
		Title: "Jazz Night",
		Link:  "https://x.test/e1",
		Date:  &models.ListingDate{When: "Thu, Jan 19"},
	}
	retitled := withLink
	retitled.Title = "Jazz Night (Updated)"

	if DeriveID(withLink) != DeriveID(retitled) {
		t.Error("ID should not change when only the title changes and the link is stable")
	}
}

func TestDeriveID_FallsBackToTitleAndWhen(t *testing.T) {
	a := models.RawListing{Title: "Jazz Night", Date: &models.ListingDate{When: "Thu, Jan 19"}}
	b := models.RawListing{Title: "Jazz Night", Date: &models.ListingDate{When: "Fri, Jan 20"}}

	if DeriveID(a) == "" {
		t.Fatal("DeriveID must be total: every listing gets an ID")
	}
	if DeriveID(a) == DeriveID(b) {
		t.Error("Listings with different dates should get different IDs")
	}
}

func TestDeriveID_Stable(t *testing.T) {
	listing := models.RawListing{
		Title: "Jazz Night",
		Link:  "https://x.test/e1",
	}
	first := DeriveID(listing)
	second := DeriveID(listing)
	if first != second {
		t.Errorf("DeriveID is not deterministic: %q != %q", first, second)
	}
}

func TestDeriveID_KeySafe(t *testing.T) {
	// Inputs chosen so the raw base64 form would contain +, / and padding.
	tests := []struct {
		name    string
		listing models.RawListing
	}{
		{"url with query", models.RawListing{Link: "https://x.test/e?id=1&x=~~~"}},
		{"binary-ish title", models.RawListing{Title: "a\xfb\xff>>?b"}},
		{"short input needing padding", models.RawListing{Title: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := DeriveID(tt.listing)
			if id == "" {
				t.Fatal("expected non-empty ID")
			}
			if strings.ContainsAny(id, "+/=") {
				t.Errorf("ID %q contains characters unsafe for document paths", id)
			}
		})
	}
}

func TestDeriveID_DistinctInputsDistinctIDs(t *testing.T) {
	seen := make(map[string]string)
	links := []string{
		"https://x.test/e1",
		"https://x.test/e2",
		"https://x.test/e1?ref=home",
		"https://y.test/e1",
	}
	for _, link := range links {
		id := DeriveID(models.RawListing{Link: link})
		if prev, dup := seen[id]; dup {
			t.Errorf("collision: %q and %q both derive %q", prev, link, id)
		}
		seen[id] = link
	}
}
