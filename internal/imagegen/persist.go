package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"bouquet/internal/domain"
)

// ArtifactStore is the write side of the result directory.
type ArtifactStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Path(key string) (string, error)
}

// PersisterOptions configures a Persister.
type PersisterOptions struct {
	Store      ArtifactStore
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	NewID      func() string
}

// Persister writes resolved results into the artifact store under a fresh
// <uuid>.png name.
type Persister struct {
	store      ArtifactStore
	baseURL    string
	httpClient *http.Client
	newID      func() string
}

func NewPersister(opts PersisterOptions) *Persister {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Persister{
		store:      opts.Store,
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		httpClient: client,
		newID:      newID,
	}
}

// Persist materializes the result bytes and stores them. Every failure is a
// PersistenceFailed error.
func (p *Persister) Persist(ctx context.Context, res Result) (StoredArtifact, error) {
	if p.store == nil {
		return StoredArtifact{}, domain.PersistenceFailed(errors.New("no artifact store configured"))
	}
	var (
		data []byte
		err  error
	)
	switch res.Kind {
	case ResultInline:
		data, err = DecodePayload(res.Payload)
		if err != nil {
			return StoredArtifact{}, domain.PersistenceFailed(fmt.Errorf("decode inline result: %w", err))
		}
	case ResultRemote:
		data, err = p.fetch(ctx, res.URL)
		if err != nil {
			return StoredArtifact{}, domain.PersistenceFailed(err)
		}
	default:
		return StoredArtifact{}, domain.PersistenceFailed(errors.New("no result to persist"))
	}

	id := p.newID()
	name := id + ".png"
	if _, err := p.store.Write(ctx, name, data); err != nil {
		return StoredArtifact{}, domain.PersistenceFailed(err)
	}
	path, err := p.store.Path(name)
	if err != nil {
		return StoredArtifact{}, domain.PersistenceFailed(err)
	}
	return StoredArtifact{
		ID:   id,
		Name: name,
		Path: path,
		URL:  p.baseURL + "/" + name,
		Size: len(data),
	}, nil
}

func (p *Persister) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build result request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("fetch result: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("fetch result: empty body")
	}
	return data, nil
}
