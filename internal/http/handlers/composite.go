package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"bouquet/internal/domain"
	"bouquet/internal/imagegen"
)

const (
	fieldSubjectImage      = "subject_image"
	fieldObjectImage       = "object_image"
	fieldSubjectImageAlias = "user_image"
	fieldObjectImageAlias  = "bouquet_image"
	fieldSubjectImageURL   = "subject_image_url"
	fieldObjectImageURL    = "object_image_url"
	fieldStyleHint         = "style_hint"

	multipartMemory = 32 << 20
	// multipartOverhead covers boundaries and the small text fields on top of
	// the two files.
	multipartOverhead = 1 << 20
	jsonBodyLimit     = 64 << 10
)

type compositeJSONRequest struct {
	SubjectImageURL string `json:"subject_image_url"`
	ObjectImageURL  string `json:"object_image_url"`
	StyleHint       string `json:"style_hint"`
}

type compositeResponse struct {
	Status              string `json:"status"`
	ID                  string `json:"id"`
	ResultImageURL      string `json:"result_image_url"`
	StyleHint           string `json:"style_hint"`
	Model               string `json:"model"`
	OriginalSubjectFile string `json:"original_subject_file,omitempty"`
	OriginalObjectFile  string `json:"original_object_file,omitempty"`
	Message             string `json:"message"`
}

// CompositeBouquet accepts either a multipart upload of both images or a JSON
// body with their URLs, runs the pipeline and returns the stored result.
func (a *App) CompositeBouquet(w http.ResponseWriter, r *http.Request) {
	if a.Compositor == nil {
		a.fail(w, r, domain.ConfigurationError("compositor is not configured"))
		return
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		in      imagegen.Input
		cleanup func()
		err     error
	)
	switch mediaType {
	case "multipart/form-data":
		in, cleanup, err = a.parseMultipart(w, r)
	case "application/json", "":
		in, err = a.parseJSON(w, r)
	default:
		err = domain.InvalidRequest("unsupported content type " + mediaType)
	}
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		a.logger(r).Warn().Err(err).Msg("reject composite request")
		a.fail(w, r, err)
		return
	}

	outcome, err := a.Compositor.Composite(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	resp := compositeResponse{
		Status:         "success",
		ID:             outcome.ID,
		ResultImageURL: outcome.Artifact.URL,
		StyleHint:      outcome.StyleHint,
		Model:          outcome.Model,
		Message:        localize(r.Context(), msgCompositeComplete),
	}
	if in.Subject.Reader != nil {
		resp.OriginalSubjectFile = outcome.SubjectName
	}
	if in.Object.Reader != nil {
		resp.OriginalObjectFile = outcome.ObjectName
	}
	a.json(w, http.StatusOK, resp)
}

func (a *App) parseJSON(w http.ResponseWriter, r *http.Request) (imagegen.Input, error) {
	var req compositeJSONRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, jsonBodyLimit)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return imagegen.Input{}, domain.InvalidRequest("request body is empty")
		}
		return imagegen.Input{}, domain.InvalidRequest("invalid JSON body")
	}
	subject := strings.TrimSpace(req.SubjectImageURL)
	object := strings.TrimSpace(req.ObjectImageURL)
	if subject == "" || object == "" {
		return imagegen.Input{}, domain.InvalidRequest("subject_image_url and object_image_url are required")
	}
	return imagegen.Input{
		Subject:   imagegen.ImageSource{URL: subject},
		Object:    imagegen.ImageSource{URL: object},
		StyleHint: req.StyleHint,
	}, nil
}

func (a *App) parseMultipart(w http.ResponseWriter, r *http.Request) (imagegen.Input, func(), error) {
	if a.Config != nil && a.Config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, 2*a.Config.MaxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return imagegen.Input{}, nil, domain.InvalidRequest("upload exceeds size limit")
		}
		return imagegen.Input{}, nil, domain.InvalidRequest("invalid multipart body")
	}

	var files []multipart.File
	cleanup := func() {
		for _, f := range files {
			f.Close()
		}
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	source := func(fileField, aliasField, urlField string) (imagegen.ImageSource, error) {
		for _, field := range []string{fileField, aliasField} {
			f, header, err := r.FormFile(field)
			if errors.Is(err, http.ErrMissingFile) {
				continue
			}
			if err != nil {
				return imagegen.ImageSource{}, domain.InvalidRequest("read " + field + ": " + err.Error())
			}
			files = append(files, f)
			return imagegen.ImageSource{
				Name:     header.Filename,
				MIMEType: header.Header.Get("Content-Type"),
				Reader:   f,
			}, nil
		}
		if u := strings.TrimSpace(r.FormValue(urlField)); u != "" {
			return imagegen.ImageSource{URL: u}, nil
		}
		return imagegen.ImageSource{}, domain.InvalidRequest(fileField + " is required")
	}

	subject, err := source(fieldSubjectImage, fieldSubjectImageAlias, fieldSubjectImageURL)
	if err != nil {
		return imagegen.Input{}, cleanup, err
	}
	object, err := source(fieldObjectImage, fieldObjectImageAlias, fieldObjectImageURL)
	if err != nil {
		return imagegen.Input{}, cleanup, err
	}
	return imagegen.Input{
		Subject:   subject,
		Object:    object,
		StyleHint: r.FormValue(fieldStyleHint),
	}, cleanup, nil
}
