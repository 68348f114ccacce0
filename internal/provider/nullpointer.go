package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// NullPointer uploads to a 0x0.st-style paste host: one multipart POST,
// the response body is the download URL in plain text. The host may
// announce when the file will be dropped via an X-Expires header
// holding a millisecond unix timestamp; absent header means unknown,
// reported as no expiry.
type NullPointer struct {
	endpoint string
	client   *http.Client
}

// NewNullPointer points the adapter at a paste host. A nil client
// falls back to a 30s-timeout default.
func NewNullPointer(endpoint string, client *http.Client) *NullPointer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &NullPointer{endpoint: endpoint, client: client}
}

func (p *NullPointer) Name() string { return "nullpointer" }

func (p *NullPointer) Store(ctx context.Context, blob []byte, filename, mimeType string, opts StoreOptions) (StoredObject, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return StoredObject{}, failed(p.Name(), err)
	}
	if _, err := part.Write(blob); err != nil {
		return StoredObject{}, failed(p.Name(), err)
	}
	// The protocol takes a requested retention in whole hours.
	if opts.Expiry > 0 {
		hours := int64(opts.Expiry.Hours())
		if hours < 1 {
			hours = 1
		}
		if err := mw.WriteField("expires", strconv.FormatInt(hours, 10)); err != nil {
			return StoredObject{}, failed(p.Name(), err)
		}
	}
	if err := mw.Close(); err != nil {
		return StoredObject{}, failed(p.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &body)
	if err != nil {
		return StoredObject{}, failed(p.Name(), err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return StoredObject{}, failed(p.Name(), err)
	}
	defer resp.Body.Close()

	// Responses are tiny (a URL), cap the read anyway.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return StoredObject{}, failed(p.Name(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return StoredObject{}, failed(p.Name(), fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	link := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		return StoredObject{}, failed(p.Name(), fmt.Errorf("response body is not a URL: %q", link))
	}

	obj := StoredObject{URL: link}
	if raw := resp.Header.Get("X-Expires"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return StoredObject{}, failed(p.Name(), fmt.Errorf("bad X-Expires header: %q", raw))
		}
		expires := time.UnixMilli(ms)
		obj.ExpiresAt = &expires
	}
	return obj, nil
}
