package submission

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Decryptor recovers the plaintext score field vector and the auxiliary
// client hash from the transport payload. The wire encryption scheme is a
// collaborator boundary; the pipeline only needs the recovered fields.
type Decryptor interface {
	Decrypt(payload, iv []byte, osuVersion string) (fields []string, clientHash string, err error)
}

// DecryptorFunc adapts a function to the Decryptor interface.
type DecryptorFunc func(payload, iv []byte, osuVersion string) ([]string, string, error)

// Decrypt implements Decryptor.
func (f DecryptorFunc) Decrypt(payload, iv []byte, osuVersion string) ([]string, string, error) {
	return f(payload, iv, osuVersion)
}

// Base64Decryptor decodes an already-decrypted payload: base64, then a
// colon-delimited vector whose first element is the client hash. Used when
// a sidecar strips the wire cipher before the payload reaches this core.
type Base64Decryptor struct{}

// Decrypt implements Decryptor.
func (Base64Decryptor) Decrypt(payload, _ []byte, _ string) ([]string, string, error) {
	plain, err := base64.StdEncoding.DecodeString(string(payload))
	if err != nil {
		return nil, "", fmt.Errorf("decode payload: %w", err)
	}

	parts := strings.Split(string(plain), ":")
	if len(parts) < 2 {
		return nil, "", fmt.Errorf("payload too short: %d parts", len(parts))
	}
	return parts[1:], parts[0], nil
}
