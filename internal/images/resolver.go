// Package images upgrades low-resolution listing thumbnails by scraping
// source pages for social preview images, and persists copies in an
// internally controlled bucket.
package images

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	// User-Agent to mimic a real browser and avoid some bot blockers.
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Only the response prefix is read; meta tags live in the head
	// section, almost always within the first few KB.
	headBudgetBytes = 16 * 1024
)

// Resolver extracts high-resolution preview images from arbitrary web pages.
// Every failure mode (timeout, non-2xx, no match, network error) yields an
// empty string; callers fall back to the original thumbnail.
type Resolver struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
}

func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{
		httpClient: &http.Client{},
		// Pacing for outbound scrapes so a 100-listing run doesn't
		// hammer source servers.
		limiter: rate.NewLimiter(rate.Limit(10), 10),
		timeout: timeout,
	}
}

// ResolveHighRes fetches pageURL under a hard time and byte budget and scans
// the head section for an Open Graph image, then a Twitter-card image.
func (r *Resolver) ResolveHighRes(ctx context.Context, pageURL string) string {
	if pageURL == "" {
		return ""
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", browserUserAgent)

	res, err := r.httpClient.Do(req)
	if err != nil {
		slog.Debug("Image scrape failed", "url", pageURL, "error", err)
		return ""
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return ""
	}

	// goquery tolerates the truncated HTML this produces.
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(res.Body, headBudgetBytes))
	if err != nil {
		return ""
	}

	if img := metaContent(doc, `meta[property="og:image"]`); img != "" {
		return img
	}
	return metaContent(doc, `meta[name="twitter:image"]`)
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

var googleSizeParam = regexp.MustCompile(`=w\d+(-h\d+)?`)

// UpgradeGoogleImageURL rewrites googleusercontent-style size suffixes to
// request a 1080px render. Other URLs pass through unchanged.
func UpgradeGoogleImageURL(imageURL string) string {
	if imageURL == "" {
		return imageURL
	}
	if !strings.Contains(imageURL, "googleusercontent.com") && !strings.Contains(imageURL, "=w") {
		return imageURL
	}
	return googleSizeParam.ReplaceAllString(imageURL, "=w1080-h1080")
}

// IsLowResThumbnail reports whether imageURL is one of Google's encrypted
// low-resolution thumbnails, which are worth upgrading by scraping the
// listing's source page.
func IsLowResThumbnail(imageURL string) bool {
	return strings.Contains(imageURL, "encrypted-tbn0")
}
