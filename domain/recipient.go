package domain

// RecipientOf returns the first participant that is not currentUser.
// An empty currentUser (auth state still resolving) yields the first stored participant.
func RecipientOf(users []string, currentUser string) string {
	if len(users) == 0 {
		return ""
	}
	if currentUser == "" {
		return users[0]
	}
	for _, u := range users {
		if u != currentUser {
			return u
		}
	}
	return ""
}

// Recipient is the display record of the other participant.
// Known is false when no profile exists in the store yet.
type Recipient struct {
	Email    string  `json:"email"`
	Known    bool    `json:"known"`
	LastSeen *string `json:"last_seen"`
	PhotoURL string  `json:"photo_url,omitempty"`
}

// Initial is the avatar letter used when the recipient has no photo.
func (r Recipient) Initial() string {
	if r.Email == "" {
		return "?"
	}
	return string([]rune(r.Email)[0:1])
}

// LastSeenLabel renders the header status line.
func (r Recipient) LastSeenLabel() string {
	if !r.Known || r.LastSeen == nil {
		return "Last active: unavailable"
	}
	return "Last active: " + *r.LastSeen
}
