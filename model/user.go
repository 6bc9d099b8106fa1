package model

// User is an authenticated caller as resolved by the identity provider.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}
