package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Gofile uploads via the gofile.io flow: discover an upload server
// first, then POST the blob to it. Both steps answer JSON envelopes
// where success is signalled by status == "ok" rather than the HTTP
// code alone. Stored files never expire on their own, so ExpiresAt is
// always nil.
type Gofile struct {
	apiBase string // e.g. "https://api.gofile.io"
	client  *http.Client

	// uploadTemplate turns a discovered server name into the upload
	// endpoint. Overridden in tests to hit a local stub.
	uploadTemplate string
}

func NewGofile(apiBase string, client *http.Client) *Gofile {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Gofile{
		apiBase:        apiBase,
		client:         client,
		uploadTemplate: "https://%s.gofile.io/contents/uploadfile",
	}
}

func (g *Gofile) Name() string { return "gofile" }

type gofileServersResp struct {
	Status string `json:"status"`
	Data   struct {
		Servers []struct {
			Name string `json:"name"`
		} `json:"servers"`
	} `json:"data"`
}

type gofileUploadResp struct {
	Status string `json:"status"`
	Data   struct {
		DownloadPage string `json:"downloadPage"`
	} `json:"data"`
}

// pickServer runs the discovery step and returns the upload URL.
func (g *Gofile) pickServer(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+"/servers", nil)
	if err != nil {
		return "", err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var sr gofileServersResp
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&sr); err != nil {
		return "", fmt.Errorf("bad servers response: %w", err)
	}
	if sr.Status != "ok" || len(sr.Data.Servers) == 0 {
		return "", fmt.Errorf("server discovery refused: status %q", sr.Status)
	}
	return sr.Data.Servers[0].Name, nil
}

// uploadURL builds the content upload endpoint for a discovered server.
func (g *Gofile) uploadURL(server string) string {
	return fmt.Sprintf(g.uploadTemplate, server)
}

// Store uploads the blob. Gofile has no per-upload retention control,
// so the expiry option is ignored.
func (g *Gofile) Store(ctx context.Context, blob []byte, filename, mimeType string, _ StoreOptions) (StoredObject, error) {
	server, err := g.pickServer(ctx)
	if err != nil {
		return StoredObject{}, failed(g.Name(), err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return StoredObject{}, failed(g.Name(), err)
	}
	if _, err := part.Write(blob); err != nil {
		return StoredObject{}, failed(g.Name(), err)
	}
	if err := mw.Close(); err != nil {
		return StoredObject{}, failed(g.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.uploadURL(server), &body)
	if err != nil {
		return StoredObject{}, failed(g.Name(), err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return StoredObject{}, failed(g.Name(), err)
	}
	defer resp.Body.Close()

	var ur gofileUploadResp
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&ur); err != nil {
		return StoredObject{}, failed(g.Name(), fmt.Errorf("bad upload response: %w", err))
	}
	if ur.Status != "ok" || ur.Data.DownloadPage == "" {
		return StoredObject{}, failed(g.Name(), fmt.Errorf("upload refused: status %q", ur.Status))
	}

	// Gofile keeps content until deleted; no provider-side expiry.
	return StoredObject{URL: ur.Data.DownloadPage}, nil
}
