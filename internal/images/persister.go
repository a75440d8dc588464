package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const (
	objectPrefix  = "event-images/"
	publicURLBase = "https://storage.googleapis.com/"

	// Ceiling on a single image download. Anything larger is not a
	// thumbnail worth mirroring.
	maxDownloadBytes = 8 << 20
)

// Persister mirrors resolved images into a GCS bucket so event thumbnails
// survive source-page churn. Objects are keyed by record ID, so repeat
// persists for the same record overwrite rather than accumulate.
//
// A Persister constructed with a nil storage client degrades gracefully:
// every persist returns the empty string and callers keep the source URL.
type Persister struct {
	bucket     *storage.BucketHandle
	bucketName string
	httpClient *http.Client
}

func NewPersister(client *storage.Client, bucketName string) *Persister {
	p := &Persister{
		bucketName: bucketName,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	if client != nil && bucketName != "" {
		p.bucket = client.Bucket(bucketName)
	}
	return p
}

// PersistedURL returns the stable public URL for a record's stored image.
func (p *Persister) PersistedURL(recordID string) string {
	return publicURLBase + p.bucketName + "/" + objectPrefix + recordID + ".jpg"
}

// IsPersisted reports whether url already points into this persister's
// bucket. Used to skip re-downloading on steady-state re-syncs.
func (p *Persister) IsPersisted(url string) bool {
	if p.bucketName == "" {
		return false
	}
	return strings.HasPrefix(url, publicURLBase+p.bucketName+"/"+objectPrefix)
}

// Persist downloads srcURL and stores a copy under the record's object key,
// returning the public URL. Failures are soft: an empty string tells the
// caller to fall back to the unpersisted source URL.
func (p *Persister) Persist(ctx context.Context, srcURL, recordID string) string {
	if p.bucket == nil || srcURL == "" || recordID == "" {
		return ""
	}

	body, err := p.download(ctx, srcURL)
	if err != nil {
		slog.Warn("Image download failed", "url", srcURL, "error", err)
		return ""
	}
	defer body.Close()

	obj := p.bucket.Object(objectPrefix + recordID + ".jpg")
	w := obj.NewWriter(ctx)
	// Stored uniformly as JPEG regardless of source content type; the
	// public URL contract is a .jpg key.
	w.ContentType = "image/jpeg"
	w.PredefinedACL = "publicRead"

	if _, err := io.Copy(w, io.LimitReader(body, maxDownloadBytes)); err != nil {
		w.Close()
		slog.Warn("Image upload failed", "record", recordID, "error", err)
		return ""
	}
	if err := w.Close(); err != nil {
		slog.Warn("Image upload close failed", "record", recordID, "error", err)
		return ""
	}

	return p.PersistedURL(recordID)
}

func (p *Persister) download(ctx context.Context, srcURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, fmt.Errorf("status code %d", res.StatusCode)
	}
	return res.Body, nil
}
