package dto

type VerifyInput struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}
