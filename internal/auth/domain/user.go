package domain

import "strconv"

// User is a directory entry. Password is set by directories that hold
// plaintext credentials, PasswordHash by those that hold argon2id hashes.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"passwordHash,omitempty"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email,omitempty"`
}

// Subject is the sub claim issued for the user.
func (u User) Subject() string {
	return strconv.FormatInt(u.ID, 10)
}

// Profile strips credentials.
func (u User) Profile() UserProfile {
	return UserProfile{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}

// Metadata is what gets embedded in tokens as the custom claim.
func (u User) Metadata() Metadata {
	return Metadata{
		UserID:    u.Subject(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
}

// UserSearch is the result of a directory lookup.
type UserSearch struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
}

// UserProfile is a User without credentials, safe to return to clients.
type UserProfile struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
}

// Metadata is the custom claim carried by every token of a session.
type Metadata struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}
