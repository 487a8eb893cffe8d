package wallet

import (
	"strings"
)

const (
	minFullNameLen = 4
	minPasswordLen = 8
)

// ValidateLogin checks the login form before anything is sent.
func ValidateLogin(email, password string) error {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return &ValidationError{Field: "email", Message: "Email is required."}
	case !strings.Contains(email, "@"):
		return &ValidationError{Field: "email", Message: "Please enter a valid email address."}
	case password == "":
		return &ValidationError{Field: "password", Message: "Password is required."}
	}
	return nil
}

// ValidateRegistration checks the sign-up form before anything is sent.
func ValidateRegistration(r Registration) error {
	if len([]rune(strings.TrimSpace(r.FullName))) < minFullNameLen {
		return &ValidationError{Field: "full_name", Message: "Fullname must be more than 3 characters."}
	}
	if !strings.Contains(r.Email, "@") {
		return &ValidationError{Field: "email", Message: "Email must contain '@'."}
	}
	if len(r.Password) < minPasswordLen {
		return &ValidationError{Field: "password", Message: "Password must be at least 8 characters."}
	}
	if !r.AcceptedTerms {
		return &ValidationError{Field: "terms", Message: "You must agree to the Terms and Conditions."}
	}
	return nil
}
