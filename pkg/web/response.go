// Package web defines common components for a web application.
package web

import (
	"github.com/go-playground/validator/v10"
)

// JSONError provides type for explicit json encoded error response.
type JSONError struct {
	Error string `json:"error"`
}

// Error wraps a given err into json friendly struct.
func Error(err error) JSONError {
	return JSONError{Error: err.Error()}
}

// Response holds the common response type for all APIs.
type Response struct {
	AccessToken           string `json:"access_token,omitempty"`
	AccessTokenExpiresAt  string `json:"access_token_expires_at,omitempty"`
	RefreshToken          string `json:"refresh_token,omitempty"`
	RefreshTokenExpiresAt string `json:"refresh_token_expires_at,omitempty"`
	Data                  any    `json:"data,omitempty"`
	Error                 string `json:"error,omitempty"`
}

// GetErrorMsg converts the first validation error into a human readable message.
func GetErrorMsg(ve validator.ValidationErrors) string {
	field := ve[0]

	switch field.Tag() {
	case "required":
		return field.Field() + " field is required"
	case "email":
		return field.Field() + " field must contain a valid email"
	case "alphanum":
		return field.Field() + " field must contain only alphanumeric characters"
	case "min":
		return field.Field() + " field must be at least " + field.Param() + " long"
	case "max":
		return field.Field() + " field must be at most " + field.Param() + " long"
	case "identifier":
		return field.Field() + " field must contain a valid identifier"
	}

	return field.Field() + " field is invalid"
}
