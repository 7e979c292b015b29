// Package bind decodes and validates JSON request bodies.
package bind

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/okian/exposurerisk/pkg/logger"
)

const defaultMaxBytes = 1 << 20

var (
	// ErrEmptyBody is returned for a request without a body.
	ErrEmptyBody = errors.New("empty body")
	// ErrInvalidJSON is returned when the body does not decode.
	ErrInvalidJSON = errors.New("invalid JSON")
	// ErrBodyTooLarge is returned when the body exceeds JSONOptions.MaxBytes.
	ErrBodyTooLarge = errors.New("request body too large")
	// ErrValidation is returned when a decoded body fails validation.
	ErrValidation = errors.New("validation failed")
)

// FieldError reports the first invalid field of a request.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Message }

// Unwrap lets errors.Is match ErrValidation.
func (e *FieldError) Unwrap() error { return ErrValidation }

// ValidatorSvc holds a singleton validator and translator.
type ValidatorSvc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *ValidatorSvc
)

// Init initializes the singleton validator with english translations and
// json tag names.
func Init() *ValidatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		registerShort(v, trans, "min", "{0} must be at least {1}")
		registerShort(v, trans, "max", "{0} must be at most {1}")
		registerShort(v, trans, "dateonly", "{0} must be a YYYY-MM-DD date")
		_ = v.RegisterValidation("dateonly", isDateOnly)

		vSvc = &ValidatorSvc{Validator: v, Translator: trans}
	})
	return vSvc
}

// Get returns the validator singleton, initializing on first use.
func Get() *ValidatorSvc {
	return Init()
}

// JSONOptions controls parsing behavior.
type JSONOptions struct {
	MaxBytes        int64 // default 1MB
	DisallowUnknown bool  // default true
}

func defaultJSONOptions() JSONOptions {
	return JSONOptions{MaxBytes: defaultMaxBytes, DisallowUnknown: true}
}

// ParseJSON decodes the request body into T and validates it.
func ParseJSON[T any](r *http.Request, opts ...JSONOptions) (T, error) {
	var zero T
	o := defaultJSONOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	if r.Body == nil {
		return zero, ErrEmptyBody
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			logger.Get().Error(r.Context(), "failed to close request body", logger.Error(err))
		}
	}()

	var reader io.Reader = r.Body
	if o.MaxBytes > 0 {
		reader = http.MaxBytesReader(nil, r.Body, o.MaxBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return zero, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit)
		}
		return zero, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return zero, ErrEmptyBody
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if o.DisallowUnknown {
		dec.DisallowUnknownFields()
	}
	var dst T
	if err := dec.Decode(&dst); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	if dec.More() {
		return zero, fmt.Errorf("%w: unexpected trailing data", ErrInvalidJSON)
	}
	if err := Validate(r.Context(), dst); err != nil {
		return zero, err
	}
	return dst, nil
}

// Validate runs struct validation on v and returns a *FieldError for the
// first failing field.
func Validate(ctx context.Context, v any) error {
	err := Get().Validator.Struct(v)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		logger.Get().Error(ctx, "validator internal error", logger.Error(inv))
		return fmt.Errorf("%w: %w", ErrValidation, inv)
	}
	field, msg := ValidationFieldAndMessage(err)
	return &FieldError{Field: field, Message: msg}
}

// ValidationFieldAndMessage returns the first field and translated message.
func ValidationFieldAndMessage(err error) (field, message string) {
	if err == nil {
		return "", ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			ns := fe.Namespace()
			if i := strings.Index(ns, "."); i >= 0 {
				ns = ns[i+1:]
			}
			return ns, fe.Translate(Get().Translator)
		}
	}
	return "", err.Error()
}

func isDateOnly(fl validator.FieldLevel) bool {
	_, err := time.Parse(time.DateOnly, fl.Field().String())
	return err == nil
}

func registerShort(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error {
			return t.Add(tag, text, true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}
