package models

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("not found")

// ValidationError is a malformed or missing request field. It is reported before any carrier call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func validatePackages(pkgs []Package) error {
	if len(pkgs) == 0 {
		return Invalid("packages", "at least one package is required")
	}
	for i, p := range pkgs {
		if p.Weight <= 0 {
			return Invalid(fmt.Sprintf("packages[%d].weight", i), "must be positive")
		}
		if p.Length < 0 || p.Width < 0 || p.Height < 0 {
			return Invalid(fmt.Sprintf("packages[%d]", i), "dimensions must not be negative")
		}
	}
	return nil
}

func (r RateRequest) Validate() error {
	if r.Shipper.IsZero() {
		return Invalid("shipper", "is required")
	}
	if r.Recipient.IsZero() {
		return Invalid("recipient", "is required")
	}
	if r.ServiceType != "" && ParseServiceType(string(r.ServiceType)) == "" {
		return Invalid("serviceType", "must be ECONOMY, STANDARD or EXPRESS")
	}
	return validatePackages(r.Packages)
}

// Validate checks a shipment request. The shipper may be empty, it is filled from configuration.
func (r ShipmentRequest) Validate() error {
	if r.Recipient.IsZero() {
		return Invalid("recipient", "is required")
	}
	if r.ServiceType != "" && ParseServiceType(string(r.ServiceType)) == "" {
		return Invalid("serviceType", "must be ECONOMY, STANDARD or EXPRESS")
	}
	return validatePackages(r.Packages)
}
