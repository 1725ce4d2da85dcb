// Package validation validates configuration structs with go-playground/validator
// and maps failures onto INVALID_CONFIG errors.
package validation
