package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bouquet/internal/domain"
)

// AcquirerOptions configures how input images are obtained.
type AcquirerOptions struct {
	HTTPClient    *http.Client
	Timeout       time.Duration
	MaxBytes      int64
	HostAllowlist []string
	Logger        *zerolog.Logger
}

// Acquirer turns an ImageSource into an in-memory ImageBuffer.
type Acquirer struct {
	httpClient *http.Client
	maxBytes   int64
	allowlist  map[string]struct{}
	logger     zerolog.Logger
}

var errTooLarge = errors.New("image exceeds size limit")

// NewAcquirer constructs an Acquirer. Without an explicit client, URL fetches
// use a client bounded by Timeout (10s by default).
func NewAcquirer(opts AcquirerOptions) *Acquirer {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	var allow map[string]struct{}
	if len(opts.HostAllowlist) > 0 {
		allow = make(map[string]struct{}, len(opts.HostAllowlist))
		for _, host := range opts.HostAllowlist {
			if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
				allow[host] = struct{}{}
			}
		}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Acquirer{
		httpClient: client,
		maxBytes:   opts.MaxBytes,
		allowlist:  allow,
		logger:     logger,
	}
}

// Acquire dispatches on the source transport. Every failure is an
// AcquisitionFailed error naming the source.
func (a *Acquirer) Acquire(ctx context.Context, src ImageSource) (ImageBuffer, error) {
	switch {
	case strings.TrimSpace(src.URL) != "":
		return a.FromURL(ctx, src)
	case src.Reader != nil:
		return a.FromUpload(src)
	default:
		return ImageBuffer{}, domain.AcquisitionFailed(src.Role, errors.New("no image provided"))
	}
}

// FromUpload reads the whole upload stream into memory.
func (a *Acquirer) FromUpload(src ImageSource) (ImageBuffer, error) {
	data, err := a.readAll(src.Reader)
	if err != nil {
		return ImageBuffer{}, domain.AcquisitionFailed(src.Label(), fmt.Errorf("read upload: %w", err))
	}
	if len(data) == 0 {
		return ImageBuffer{}, domain.AcquisitionFailed(src.Label(), errors.New("upload is empty"))
	}
	return ImageBuffer{
		Name:     src.Name,
		MIMEType: resolveMIMEType(src.MIMEType, data),
		Data:     data,
	}, nil
}

// FromURL fetches the image with a single bounded GET. Non-2xx responses,
// network errors and timeouts are all acquisition failures.
func (a *Acquirer) FromURL(ctx context.Context, src ImageSource) (ImageBuffer, error) {
	rawURL := strings.TrimSpace(src.URL)
	parsed, err := a.checkURL(rawURL)
	if err != nil {
		return ImageBuffer{}, domain.AcquisitionFailed(rawURL, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return ImageBuffer{}, domain.AcquisitionFailed(rawURL, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return ImageBuffer{}, domain.AcquisitionFailed(rawURL, fmt.Errorf("fetch: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return ImageBuffer{}, domain.AcquisitionFailed(rawURL, fmt.Errorf("fetch: unexpected status %d", resp.StatusCode))
	}
	data, err := a.readAll(resp.Body)
	if err != nil {
		return ImageBuffer{}, domain.AcquisitionFailed(rawURL, fmt.Errorf("read body: %w", err))
	}
	if len(data) == 0 {
		return ImageBuffer{}, domain.AcquisitionFailed(rawURL, errors.New("fetched image is empty"))
	}
	a.logger.Debug().
		Str("role", src.Role).
		Str("url", rawURL).
		Int("bytes", len(data)).
		Dur("elapsed", time.Since(start)).
		Msg("acquired remote image")

	name := src.Name
	if name == "" {
		name = parsed.Path[strings.LastIndex(parsed.Path, "/")+1:]
	}
	declared := src.MIMEType
	if declared == "" {
		declared = resp.Header.Get("Content-Type")
	}
	return ImageBuffer{
		Name:     name,
		MIMEType: resolveMIMEType(declared, data),
		Data:     data,
	}, nil
}

func (a *Acquirer) checkURL(rawURL string) (*url.URL, error) {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("url has no host")
	}
	if a.allowlist != nil {
		if _, ok := a.allowlist[strings.ToLower(parsed.Hostname())]; !ok {
			return nil, fmt.Errorf("host %q is not allowed", parsed.Hostname())
		}
	}
	return parsed, nil
}

func (a *Acquirer) readAll(r io.Reader) ([]byte, error) {
	if a.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, a.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > a.maxBytes {
		return nil, errTooLarge
	}
	return data, nil
}

// resolveMIMEType prefers a declared image type, then content sniffing, and
// finally falls back to DefaultMIMEType.
func resolveMIMEType(declared string, data []byte) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && strings.HasPrefix(mt, "image/") {
			return mt
		}
	}
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return DefaultMIMEType
}
