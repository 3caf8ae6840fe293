// Package validation provides common validation utilities for configuration
// parameters and scheduling arguments across the tickwork packages.
//
// Scalar helpers (ValidatePositive, ValidatePositiveDuration, ...) cover
// constructor arguments. Struct validates tagged configuration structs with
// go-playground/validator after filling `default` tags with creasty/defaults.
// Every failure is reported as an *errors.ValidationError so callers can
// match them with errors.Is(err, errors.ErrInvalidConfiguration).
package validation
