package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/alexedwards/argon2id"
)

var params = &argon2id.Params{
	Memory:      64 * 1024, // 64 MB
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// ErrUnknownHash indica hash armazenado em formato não reconhecido.
var ErrUnknownHash = errors.New("formato de hash desconhecido")

// Hash gera um hash Argon2id (inclui os parâmetros dentro do próprio hash).
func Hash(password string) (string, error) {
	return argon2id.CreateHash(password, params)
}

// Verify compara a senha com o hash armazenado.
// Aceita Argon2id e o SHA-256 hexadecimal das contas legadas.
func Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return argon2id.ComparePasswordAndHash(password, encodedHash)
	case isLegacyHash(encodedHash):
		sum := sha256.Sum256([]byte(password))
		candidate := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(candidate), []byte(strings.ToLower(encodedHash))) == 1, nil
	default:
		return false, ErrUnknownHash
	}
}

// NeedsRehash indica hash legado que deve migrar para Argon2id.
func NeedsRehash(encodedHash string) bool {
	return isLegacyHash(encodedHash)
}

func isLegacyHash(h string) bool {
	if len(h) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}
