package webshare

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/GehirnInc/crypt"
	_ "github.com/GehirnInc/crypt/md5_crypt"
)

// passwordDigest derives the login secret from a plain password and the
// server-issued salt: the password is MD5-crypted with the salt and the
// resulting string is hashed once more with SHA-1. Accounts created through
// some registration paths skip the MD5-crypt step, so callers should fall
// back to the plain password when the digest is rejected.
func passwordDigest(password, salt string) (string, error) {
	crypter := crypt.MD5.New()
	hashed, err := crypter.Generate([]byte(password), []byte("$1$"+salt))
	if err != nil {
		return "", fmt.Errorf("md5-crypt failed: %w", err)
	}

	sum := sha1.Sum([]byte(hashed))
	return hex.EncodeToString(sum[:]), nil
}
