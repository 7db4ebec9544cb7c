package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes caps request bodies at 100 KiB.
const MaxBodyBytes = 100 << 10

var validate = validator.New()

// ErrUnsupportedContentType is returned when a form body is sent for a
// request type that cannot be decoded from form values.
var ErrUnsupportedContentType = errors.New("unsupported content type")

// FormDecoder is implemented by request types that can be filled from a
// URL-encoded form body.
type FormDecoder interface {
	DecodeForm(values url.Values)
}

// Decode reads a JSON or URL-encoded form body into v and validates it.
// An empty body decodes as an empty object.
func Decode(r *http.Request, v any) error {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	}

	if err := decodeBody(r, v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func decodeBody(r *http.Request, v any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		fd, ok := v.(FormDecoder)
		if !ok {
			return ErrUnsupportedContentType
		}
		if err := r.ParseForm(); err != nil {
			return err
		}
		fd.DecodeForm(r.PostForm)
		return nil
	}

	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// IsValidationError reports whether err came from struct validation rather
// than from reading the body.
func IsValidationError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}

// IsTooLarge reports whether err was caused by a body over MaxBodyBytes.
func IsTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
