package imagegen

import (
	"encoding/base64"
	"errors"
	"strings"
)

// CompositeInstruction is sent verbatim with every request. It is not
// parameterized: the first image is always the person, the second the
// object to integrate.
const CompositeInstruction = "Combine the two provided images. " +
	"The first image shows a person (bride). " +
	"The second image shows a bouquet. " +
	"Naturally integrate the bouquet from the second image into the hands of the person in the first image. " +
	"Automatically and appropriately scale the bouquet to create the most visually balanced and natural composition, based on the bride's proportions and the overall scene. " +
	"Ensure the lighting, shadows, and overall style are photorealistic and seamless. " +
	"Maintain the original pose and background of the person. " +
	"The final image should be a high-quality, elegant wedding photo."

const dataPrefix = "data:"

var errNotDataReference = errors.New("not a base64 data reference")

// BuildPayload assembles the multimodal content for one composition. The
// segment order is fixed: instruction, subject, object.
func BuildPayload(req CompositionRequest) Payload {
	return Payload{Segments: []Segment{
		{Type: SegmentTypeText, Text: CompositeInstruction},
		{Type: SegmentTypeImageURL, ImageURL: &ImageURL{URL: DataReference(req.Subject)}},
		{Type: SegmentTypeImageURL, ImageURL: &ImageURL{URL: DataReference(req.Object)}},
	}}
}

// DataReference encodes the buffer as data:<mime>;base64,<payload>.
func DataReference(buf ImageBuffer) string {
	mime := strings.TrimSpace(buf.MIMEType)
	if mime == "" {
		mime = DefaultMIMEType
	}
	var sb strings.Builder
	sb.Grow(len(dataPrefix) + len(mime) + len(";base64,") + base64.StdEncoding.EncodedLen(len(buf.Data)))
	sb.WriteString(dataPrefix)
	sb.WriteString(mime)
	sb.WriteString(";base64,")
	sb.WriteString(base64.StdEncoding.EncodeToString(buf.Data))
	return sb.String()
}

// SplitDataReference returns the MIME type and the payload after the first
// comma of a data reference. A header without a MIME type yields "".
func SplitDataReference(ref string) (mime string, payload string, err error) {
	if !strings.HasPrefix(ref, dataPrefix) {
		return "", "", errNotDataReference
	}
	header, payload, ok := strings.Cut(ref[len(dataPrefix):], ",")
	if !ok {
		return "", "", errNotDataReference
	}
	mime, _, _ = strings.Cut(header, ";")
	return strings.TrimSpace(mime), payload, nil
}

// DecodePayload decodes a base64 payload, tolerating missing padding and
// line breaks that some upstreams emit.
func DecodePayload(payload string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, payload)
	if data, err := base64.StdEncoding.DecodeString(cleaned); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
}
