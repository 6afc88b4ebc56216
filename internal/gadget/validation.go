package gadget

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultMaxNameLength bounds stored gadget names.
const DefaultMaxNameLength = 100

// ParseStatus maps a status string to a Status, ignoring case.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses() {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of Available, Deployed, Destroyed, Decommissioned)", ErrInvalidStatus, s)
}

// ValidateID checks that id is a UUID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: id must be a UUID", ErrInvalidGadget)
	}
	return nil
}

// ValidateName trims name and checks it is non-empty and at most maxLen
// characters.
func ValidateName(name string, maxLen int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidGadget)
	}
	if utf8.RuneCountInString(name) > maxLen {
		return "", fmt.Errorf("%w: name must be at most %d characters", ErrInvalidGadget, maxLen)
	}
	return name, nil
}

// Codename builds the stored name for a new gadget from the caller's label.
func Codename(prefix, label string) string {
	return prefix + label
}
