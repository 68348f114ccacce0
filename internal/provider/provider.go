// Package provider contains the upload backends a shared file can be
// relayed to. Each backend speaks its own protocol behind the Provider
// interface; the relay core only ever sees "store a blob, get back a
// URL and an optional expiry".
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrUnknownProvider is returned when an uploader names a backend that
// was never registered. It is a configuration error and is raised
// before any network call is made.
var ErrUnknownProvider = errors.New("unknown provider")

// StoredObject is the result of a successful store call.
type StoredObject struct {
	// URL is where the blob can be fetched from.
	URL string

	// ExpiresAt is the backend-declared expiry of the URL. Nil means
	// the backend keeps the object until it is deleted manually.
	ExpiresAt *time.Time
}

// StoreOptions carries per-upload hints. Backends honour what their
// protocol can express and silently ignore the rest.
type StoreOptions struct {
	// Expiry is the uploader's requested lifetime for the stored blob.
	// Zero means provider default.
	Expiry time.Duration
}

// Provider stores a blob with an external backend and returns a
// retrieval URL. Implementations do not retry: the caller still holds
// the original bytes and owns the retry decision.
type Provider interface {
	Name() string
	Store(ctx context.Context, blob []byte, filename, mimeType string, opts StoreOptions) (StoredObject, error)
}

// UploadError wraps any failure from a concrete backend (network
// error, non-success response, malformed response body) so callers see
// a single error shape regardless of which protocol failed.
type UploadError struct {
	Provider string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload to %s failed: %v", e.Provider, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// failed wraps err into an UploadError for the named backend.
func failed(name string, err error) error {
	return &UploadError{Provider: name, Err: err}
}

// Registry holds the configured providers, selected by name at upload
// time. Registration happens once at startup; lookups are read-only
// afterwards, so no locking is needed.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its own name. Registering the same
// name twice replaces the earlier entry.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Lookup resolves a provider by name.
func (r *Registry) Lookup(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names returns the registered provider names, sorted for stable logs.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
