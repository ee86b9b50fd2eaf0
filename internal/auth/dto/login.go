package dto

type LoginInput struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// ChallengeResponse is returned from a successful login. The numeric code
// itself is only ever sent through the notifier, never to the caller.
type ChallengeResponse struct {
	ChallengeID string `json:"challenge_id"`
	ExpiresAt   string `json:"expires_at"`
	Message     string `json:"message"`
}
