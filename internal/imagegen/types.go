package imagegen

import (
	"context"
	"io"
)

// DefaultMIMEType is assumed when neither the caller nor content sniffing
// yields an image type.
const DefaultMIMEType = "image/jpeg"

// DefaultStyleHint is the advisory hint recorded when the caller sends none.
const DefaultStyleHint = "standard and natural size"

// ImageSource describes where one input image comes from: either an uploaded
// stream (Reader) or a remote URL. Exactly one of the two is expected.
type ImageSource struct {
	Role     string
	Name     string
	MIMEType string
	Reader   io.Reader
	URL      string
}

// Label identifies the source in logs and error details.
func (s ImageSource) Label() string {
	if s.URL != "" {
		return s.URL
	}
	if s.Name != "" {
		return s.Name
	}
	return s.Role
}

// ImageBuffer holds one acquired input image in memory for the lifetime of a
// single request.
type ImageBuffer struct {
	Name     string
	MIMEType string
	Data     []byte
}

// CompositionRequest is the pipeline's view of a single composite job.
type CompositionRequest struct {
	Subject   ImageBuffer
	Object    ImageBuffer
	StyleHint string
}

// Input is what callers hand to the Compositor.
type Input struct {
	Subject   ImageSource
	Object    ImageSource
	StyleHint string
}

const (
	SegmentTypeText     = "text"
	SegmentTypeImageURL = "image_url"
)

// Segment is one element of the multimodal user message.
type Segment struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// Payload is the ordered multimodal content: instruction, subject, object.
type Payload struct {
	Segments []Segment
}

// Generator performs the single billable upstream call for a payload and
// returns the raw response body.
type Generator interface {
	Complete(ctx context.Context, payload Payload) ([]byte, error)
	Model() string
	HasCredentials() bool
}

// ResultKind tags the variant held by a Result.
type ResultKind int

const (
	ResultAbsent ResultKind = iota
	ResultInline
	ResultRemote
)

func (k ResultKind) String() string {
	switch k {
	case ResultInline:
		return "inline"
	case ResultRemote:
		return "remote"
	default:
		return "absent"
	}
}

// Result is the resolved output image reference. Inline results carry the
// base64 payload (everything after the first comma of the data reference);
// remote results carry the URL.
type Result struct {
	Kind       ResultKind
	MIMEType   string
	Payload    string
	URL        string
	Convention string
}

// StoredArtifact is a persisted output image.
type StoredArtifact struct {
	ID   string
	Name string
	Path string
	URL  string
	Size int
}

// Outcome is returned by a successful composite run.
type Outcome struct {
	ID           string
	Artifact     StoredArtifact
	Model        string
	StyleHint    string
	SubjectName  string
	ObjectName   string
	ResultSource string
}
