package enrichment

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/citation-enrichment-service/internal/domain"
)

// Bounds for per-batch options.
const (
	MaxConcurrency = 64
	MaxRetryCount  = 10
)

// Options controls a single Enrich call.
type Options struct {
	// Concurrency is the worker pool size.
	Concurrency int `json:"concurrency" validate:"min=1,max=64"`

	// RetryCount is the number of primary retries after the first attempt.
	RetryCount int `json:"retry_count" validate:"min=0,max=10"`

	// UseFallback enables the title lookup once the primary is exhausted.
	UseFallback bool `json:"use_fallback"`

	// UseCache enables cache reads and writes.
	UseCache bool `json:"use_cache"`
}

// DefaultOptions returns {Concurrency: 5, RetryCount: 2, UseFallback: true, UseCache: true}.
func DefaultOptions() Options {
	return Options{
		Concurrency: 5,
		RetryCount:  2,
		UseFallback: true,
		UseCache:    true,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json names so API callers see the field they sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the options against their bounds. Every violation is
// reported as a *domain.ValidationError.
func (o Options) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate options: %w", err)
	}

	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, domain.NewValidationError(fe.Field(), describe(fe)))
	}
	return errors.Join(errs...)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}
