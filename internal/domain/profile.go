package domain

import "time"

// Profile is the application-side record kept for every registered account.
type Profile struct {
	UID       string    `json:"uid"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProfileUpdate carries the mutable profile fields. Nil fields are left untouched.
type ProfileUpdate struct {
	Username *string
	Email    *string
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil
}

// Fields returns the update as a document-style field map.
func (u ProfileUpdate) Fields() map[string]any {
	fields := make(map[string]any, 2)
	if u.Username != nil {
		fields["username"] = *u.Username
	}
	if u.Email != nil {
		fields["email"] = *u.Email
	}
	return fields
}

// Credentials are the generated login details handed back once at registration.
type Credentials struct {
	UID      string `json:"-"`
	Username string `json:"username"`
	Password string `json:"password"`
}
