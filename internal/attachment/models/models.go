package models

import (
	"strings"

	dErrors "disposisi/pkg/domain-errors"
)

// LocatorPrefix marks content-addressed locators.
const LocatorPrefix = "sha256:"

// Attachment is the opaque reference stored on a record.
type Attachment struct {
	Name    string `json:"name"`
	Locator string `json:"locator"`
}

// Blob is the stored content behind a locator.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// ValidateLocator checks the "sha256:<64 hex>" shape.
func ValidateLocator(locator string) error {
	hex, ok := strings.CutPrefix(locator, LocatorPrefix)
	if !ok || len(hex) != 64 {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid attachment locator")
	}
	for _, c := range hex {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return dErrors.New(dErrors.CodeInvalidInput, "invalid attachment locator")
		}
	}
	return nil
}
