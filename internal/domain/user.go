package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxUserNameLen = 72

var (
	ErrUserNameTooLong = errors.New("user name too long")
	ErrUserNameEmpty   = errors.New("user name empty")
)

type UserID string

// User is an application account. OperatorID carries the external operator
// identity when one is known; the placeholder account has none.
type User struct {
	ID         UserID `json:"id"`
	OperatorID string `json:"operator_id,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
}

// PlaceholderName marks the shared system account that owns meetings
// until a real operator can be attributed.
const PlaceholderName = "unassigned"

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(name, operatorID string) (*User, error) {
	if len(name) == 0 {
		return nil, ErrUserNameEmpty
	}
	if len(name) > MaxUserNameLen {
		return nil, ErrUserNameTooLong
	}
	return &User{ID: UserID(uuid.NewString()), Name: name, OperatorID: operatorID}, nil
}

// IsPlaceholder reports whether the user is the shared fallback owner.
func (u *User) IsPlaceholder() bool {
	return u.OperatorID == "" && u.Name == PlaceholderName
}
