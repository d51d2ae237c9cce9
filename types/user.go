package types

// User is the identity attributed to a connection at handshake time.
// Identities are issued elsewhere (gateway / auth collaborator), this
// service only consumes them.
type User struct {
	Id       int64  `json:"id"`
	Username string `json:"username"`
	IsGuest  bool   `json:"is_guest"`
}

// ActiveUser is one entry of the active-users snapshot. The profile
// fields are best-effort enrichment from the user directory and fall
// back to zero values when the lookup fails.
type ActiveUser struct {
	Id           int64  `json:"id"`
	Username     string `json:"username"`
	Status       string `json:"status"`
	SessionCount int    `json:"session_count"`
	IsGuest      bool   `json:"is_guest"`
	Email        string `json:"email,omitempty"`
	AvatarUrl    string `json:"avatar_url,omitempty"`
	Gender       string `json:"gender,omitempty"`
}
