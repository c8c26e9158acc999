package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate validates Config using struct tags, mirroring the teacher's
// OSSConfig.Validate (validator.New with required-struct enabled, errors
// reformatted into one readable message).
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// formatValidationErrors turns validator's field-path errors into one
// multi-line, human-readable message instead of the library's default
// Go-syntax struct dump.
func formatValidationErrors(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var b strings.Builder
	b.WriteString("invalid configuration:")
	for _, fe := range verrs {
		fmt.Fprintf(&b, "\n  - %s: failed %q (value: %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("%s", b.String())
}
