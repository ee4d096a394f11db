// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var zipPattern = regexp.MustCompile(`^\d{5}$`)

func isUSZip(fl validator.FieldLevel) bool {
	return zipPattern.MatchString(fl.Field().String())
}

// RegisterBindings installs the domain rules on gin's binding engine so
// `binding:"us_zip"` tags work in request structs. Call once at startup.
func RegisterBindings() error {
	engine, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return engine.RegisterValidation("us_zip", isUSZip)
}

// Validator wraps the go-playground validator for structured validation.
// Using a struct allows for dependency injection and easier testing.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator instance with domain rules registered.
func New() *Validator {
	v := validator.New()

	// us_zip matches exactly five digits; coverage sets only ever store
	// 5-digit ZIPs.
	_ = v.RegisterValidation("us_zip", isUSZip)

	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}
