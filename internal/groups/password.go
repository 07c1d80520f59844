package groups

import (
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

const defaultPasswordSalt = "groupsync"

// HashPassword derives the group password hash sent to the server. The salt
// is fixed per deployment so every client derives the same hash.
func HashPassword(password string, salt []byte) string {
	key := argon2.IDKey([]byte(password), salt, 1, 64*1024, 2, 32)
	return hex.EncodeToString(key)
}

func (s *Service) hashPassword(password string) string {
	return HashPassword(password, s.salt)
}
