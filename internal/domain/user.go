package domain

import "time"

// User is the single account aggregate. Verification, recovery and session
// token state live on the same record.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string

	Verified           bool
	VerifyToken        string
	VerifyTokenExpires time.Time

	ResetPasswordToken   string
	ResetPasswordExpires time.Time

	// Token caches the last issued session token. It is informational only.
	Token string

	Languages    []int64
	SavedStories []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// VerifyExpired reports whether the stored verification window has closed.
func (u *User) VerifyExpired(now time.Time) bool {
	return !u.VerifyTokenExpires.After(now)
}

// ProfileUpdate carries the profile attributes a caller explicitly provided.
// A nil field means "leave unchanged".
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// Empty reports whether no attribute was provided.
func (p ProfileUpdate) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil
}
