package constant

const (
	DefaultTokenType = "Bearer"

	// TwoFactorCodeLength is the number of digits in a login challenge code.
	TwoFactorCodeLength = 6

	// BcryptCost is the fixed bcrypt work factor for password hashes.
	BcryptCost = 12
)
