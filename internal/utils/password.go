package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a user's password with bcrypt.  A cost outside the
// range bcrypt accepts (for example an unset BCRYPT_COST of 0) is replaced
// by bcrypt.DefaultCost so sign-up does not fail on configuration.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	return string(hash), err
}

// VerifyPassword reports whether plain matches the stored hash.  A malformed
// hash never matches.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
