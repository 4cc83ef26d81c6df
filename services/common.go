package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/yashrajoria/giftshop-backend/common/errors"
	awspkg "github.com/yashrajoria/giftshop-backend/pkg/aws"
	"github.com/yashrajoria/giftshop-backend/repository"
)

// validate shares the "binding" tag vocabulary with gin so payloads built
// outside HTTP handlers are checked by the same rules.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	return v
}

// Validate checks v against its binding tags and reports the first failing field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.InvalidInput("Invalid %s: failed %s", fe.Field(), fe.Tag())
	}
	return apperrors.InvalidInput("Invalid request: %v", err)
}

// notFound turns repository.ErrNotFound into a business error and wraps anything else.
func notFound(err error, what, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("%s not found: %s", what, id)
	}
	return fmt.Errorf("load %s %s: %w", strings.ToLower(what), id, err)
}

// recordCount sends a counter off the request path.
func recordCount(m awspkg.Metrics, name string, dims map[string]string) {
	if m == nil || !m.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.RecordCount(ctx, name, dims)
	}()
}

func recordValue(m awspkg.Metrics, name string, value float64, dims map[string]string) {
	if m == nil || !m.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.RecordValue(ctx, name, value, dims)
	}()
}
