package security

import "golang.org/x/crypto/bcrypt"

// passwordHashCost is the bcrypt work factor applied to stored credentials.
const passwordHashCost = 12

// HashPassword derives a bcrypt hash from the plaintext credential.
func HashPassword(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), passwordHashCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// CheckPassword reports whether the plaintext credential matches the stored
// bcrypt hash.
func CheckPassword(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
