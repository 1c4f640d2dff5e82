// Package validate checks inbound request DTOs before they reach
// TaskCore's own invariant checks. Struct-tag validation
// (github.com/go-playground/validator/v10) catches shape errors — missing
// required fields, malformed email, out-of-range lengths — at the HTTP
// edge; the hand-rolled helpers below cover rules a struct tag can't
// express cleanly, the same split the teacher's own validate.go draws.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	instance *validator.Validate
	once     sync.Once
)

// Struct runs struct-tag validation and flattens the first failing field
// into a single readable message; handlers don't need go-playground's
// FieldError machinery beyond this.
func Struct(v interface{}) error {
	once.Do(func() { instance = validator.New(validator.WithRequiredStructEnabled()) })
	if err := instance.Struct(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q validation", fe.Field(), fe.Tag())
		}
		return err
	}
	return nil
}

// priorityRx and recurrenceRx guard the enum-like string fields TaskCore's
// model types parse from request JSON, since "oneof=low medium high" on
// a struct tag reads less clearly than a named check at the call site.
var (
	priorityRx   = regexp.MustCompile(`^(low|medium|high)$`)
	recurrenceRx = regexp.MustCompile(`^(none|daily|weekly|monthly)$`)
)

func Priority(v string) error {
	if v == "" {
		return nil
	}
	if !priorityRx.MatchString(strings.ToLower(v)) {
		return fmt.Errorf("priority must be one of low, medium, high")
	}
	return nil
}

func Recurrence(v string) error {
	if v == "" {
		return nil
	}
	if !recurrenceRx.MatchString(strings.ToLower(v)) {
		return fmt.Errorf("recurrence must be one of none, daily, weekly, monthly")
	}
	return nil
}

func NonEmpty(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}
