package imagegen

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"bouquet/internal/domain"
)

type completionResponse struct {
	Choices []completionChoice `json:"choices"`
	Error   *completionError   `json:"error,omitempty"`
}

type completionChoice struct {
	Message *completionMessage `json:"message"`
}

type completionError struct {
	Code    json.RawMessage `json:"code,omitempty"`
	Message string          `json:"message"`
}

type completionMessage struct {
	Content json.RawMessage   `json:"content,omitempty"`
	Images  []completionImage `json:"images,omitempty"`
}

type completionImage struct {
	Type     string `json:"type"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// text flattens the message content, which upstreams send either as a plain
// string or as an array of typed parts.
func (m *completionMessage) text() string {
	if len(m.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var parts []contentPart
	if err := json.Unmarshal(m.Content, &parts); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range parts {
		if p.Type == "" || p.Type == "text" {
			sb.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

// convention recognizes one way an upstream can return the generated image.
type convention struct {
	name  string
	match func(msg *completionMessage) (ref string, ok bool)
}

// conventions are evaluated in order; the first match wins.
var conventions = []convention{
	{
		name: "images_field",
		match: func(msg *completionMessage) (string, bool) {
			if len(msg.Images) == 0 {
				return "", false
			}
			ref := strings.TrimSpace(msg.Images[0].ImageURL.URL)
			return ref, ref != ""
		},
	},
	{
		name: "content_data",
		match: func(msg *completionMessage) (string, bool) {
			text := msg.text()
			return text, strings.HasPrefix(text, dataPrefix)
		},
	},
	{
		name: "content_url",
		match: func(msg *completionMessage) (string, bool) {
			text := msg.text()
			return text, strings.HasPrefix(text, "http")
		},
	},
}

// Resolve classifies a raw completion body into a Result. A body that decodes
// but carries no image yields GenerationEmpty, as does undecodable JSON. An
// error object in an otherwise successful response is an UpstreamError.
func Resolve(raw []byte) (Result, error) {
	var resp completionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Result{Kind: ResultAbsent}, domain.GenerationEmpty("response is not valid JSON")
	}
	if resp.Error != nil {
		return Result{Kind: ResultAbsent}, domain.UpstreamError(resp.Error.status(), resp.Error.Message)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return Result{Kind: ResultAbsent}, domain.GenerationEmpty("response has no message")
	}
	msg := resp.Choices[0].Message
	for _, c := range conventions {
		ref, ok := c.match(msg)
		if !ok {
			continue
		}
		res, err := classify(ref)
		if err != nil {
			return Result{Kind: ResultAbsent}, domain.GenerationEmpty(fmt.Sprintf("%s: %v", c.name, err))
		}
		res.Convention = c.name
		return res, nil
	}
	return Result{Kind: ResultAbsent}, domain.GenerationEmpty("response message contains no image")
}

func classify(ref string) (Result, error) {
	if !strings.HasPrefix(ref, dataPrefix) {
		return Result{Kind: ResultRemote, URL: ref}, nil
	}
	mime, payload, err := SplitDataReference(ref)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: ResultInline, MIMEType: mime, Payload: payload}, nil
}

func (e *completionError) status() int {
	var code int
	if err := json.Unmarshal(e.Code, &code); err == nil && code >= 400 && code <= 599 {
		return code
	}
	return http.StatusBadGateway
}
