package gadget

import "errors"

// Domain errors for the gadget package.
//
// Check them with errors.Is:
//
//	if errors.Is(err, gadget.ErrNotFound) {
//	    // 404
//	}
var (
	// ErrNotFound is returned when no gadget has the requested ID.
	ErrNotFound = errors.New("gadget: not found")

	// ErrInvalidGadget is returned when input fails validation. It is
	// wrapped with a description of the offending field.
	ErrInvalidGadget = errors.New("gadget: invalid")

	// ErrInvalidStatus is returned for a status value outside the lifecycle.
	ErrInvalidStatus = errors.New("gadget: invalid status")

	// ErrDuplicateName is returned when another gadget already has the name.
	ErrDuplicateName = errors.New("gadget: name already exists")

	// ErrInvalidTransition is returned when the lifecycle forbids the
	// requested status change.
	ErrInvalidTransition = errors.New("gadget: invalid transition")

	// ErrConcurrentUpdate is returned when the gadget changed between read
	// and write.
	ErrConcurrentUpdate = errors.New("gadget: modified concurrently")
)

// IsValidationError reports whether err is caused by bad input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidGadget) || errors.Is(err, ErrInvalidStatus)
}
