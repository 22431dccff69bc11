package domain

// User is the per-user profile record, keyed by email.
// LastSeen is updated last-write-wins each time the user sends a message.
type User struct {
	Email    string
	LastSeen *string
	PhotoURL string
}
