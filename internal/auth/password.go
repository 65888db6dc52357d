package auth

import "golang.org/x/crypto/bcrypt"

// MaxBcryptCost bounds hashing latency on the request path.
const MaxBcryptCost = 14

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), ClampCost(cost))
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// ClampCost keeps cost within [bcrypt.MinCost, MaxBcryptCost]; zero selects the default.
func ClampCost(cost int) int {
	switch {
	case cost == 0:
		return bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		return bcrypt.MinCost
	case cost > MaxBcryptCost:
		return MaxBcryptCost
	default:
		return cost
	}
}
