package auth

import (
	"crypto/rand"
	"math/big"
)

// ProvisionalLength é o tamanho da senha provisória entregue ao usuário.
const ProvisionalLength = 12

const provisionalCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%"

// GenerateProvisional sorteia uma senha provisória com crypto/rand.
func GenerateProvisional() (string, error) {
	max := big.NewInt(int64(len(provisionalCharset)))
	out := make([]byte, ProvisionalLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = provisionalCharset[n.Int64()]
	}
	return string(out), nil
}
