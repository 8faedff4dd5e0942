package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUniquenessViolation indicates a unique constraint was hit.
	ErrUniquenessViolation = errors.New("record already exists")
)

// UserFacing marks errors whose text is safe to show to admin users.
type UserFacing interface {
	UserMessage() string
}

// UserSafeMessage maps an error to text safe to show to admin users.
func UserSafeMessage(err error) string {
	var uf UserFacing
	if errors.As(err, &uf) {
		return uf.UserMessage()
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found."
	case errors.Is(err, ErrUniquenessViolation):
		return "A record with the same identifier already exists."
	}
	return "Something went wrong. Please try again."
}
