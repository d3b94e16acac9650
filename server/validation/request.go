// Package validation decodes and validates the JSON bodies accepted by the
// gateway and estimates the token size of submitted text.
package validation

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/huulkit/huulkit/errors"
	"github.com/huulkit/huulkit/refine"
)

// MaxBodyBytes bounds every request body.
const MaxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("language", func(fl validator.FieldLevel) bool {
		_, err := refine.ParseLanguage(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(fmt.Sprintf("register language validation: %v", err))
	}
	return v
}

// RefineRequest is the body of POST /v1/refine. Missing options select the
// default refinement.
type RefineRequest struct {
	Text    string          `json:"text" validate:"required"`
	Options *refine.Options `json:"options,omitempty"`
}

// TranslateRequest is the body of POST /v1/translate. Without a target the
// text is translated into every other language.
type TranslateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source" validate:"required,language"`
	Target string `json:"target,omitempty" validate:"omitempty,language"`
}

// KeysRequest is the body of PUT /v1/keys. A nil field leaves the key
// unchanged; an empty string clears it.
type KeysRequest struct {
	GeminiAPIKey  *string `json:"gemini_api_key,omitempty" validate:"omitempty,max=512,printascii"`
	WeatherAPIKey *string `json:"weather_api_key,omitempty" validate:"omitempty,max=512,printascii"`
}

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// DecodeJSON reads the request body into dst and validates it. The returned
// error is ready to be written with errors.WriteError.
func DecodeJSON(r *http.Request, requestID string, dst interface{}) *errors.HuulkitError {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return errors.NewValidationError(requestID, "Invalid or missing Content-Type header", map[string]interface{}{
				"fields": []FieldError{{
					Field:   "header:Content-Type",
					Message: "Content-Type must be application/json",
					Code:    "invalid_content_type",
				}},
			})
		}
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.NewValidationError(requestID, "Invalid request format", map[string]interface{}{
			"fields": []FieldError{{
				Field:   "body",
				Message: err.Error(),
				Code:    "invalid_json",
			}},
		})
	}

	if err := validate.Struct(dst); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return errors.NewInternalError(requestID, err)
		}
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   fe.Field(),
				Message: fieldMessage(fe),
				Code:    fe.Tag() + "_validation_failed",
			})
		}
		return errors.NewValidationError(requestID, fields[0].Message, map[string]interface{}{
			"fields": fields,
		})
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch {
	case fe.Field() == "text" && fe.Tag() == "required":
		return "Text cannot be empty"
	case fe.Tag() == "required":
		return fmt.Sprintf("field '%s' is required", fe.Field())
	case fe.Tag() == "language":
		names := make([]string, len(refine.Languages))
		for i, l := range refine.Languages {
			names[i] = l.String()
		}
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.Join(names, ", "))
	case fe.Tag() == "max":
		return fmt.Sprintf("%s is too long", fe.Field())
	case fe.Tag() == "printascii":
		return fmt.Sprintf("%s must contain printable ASCII characters only", fe.Field())
	default:
		return fmt.Sprintf("%s failed the %s check", fe.Field(), fe.Tag())
	}
}
