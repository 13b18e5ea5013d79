package crypto

import (
	"fmt"

	"github.com/fernet/fernet-go"
	"github.com/pkg/errors"
)

var ErrInvalidCiphertext = errors.New("ciphertext is invalid or was tampered with")

// Encryptor provides authenticated symmetric encryption(fernet) for
// sensitive fields at rest. The key comes from process configuration
// and is never persisted alongside the data.
type Encryptor struct {
	key *fernet.Key
}

func NewEncryptor(encodedKey string) (*Encryptor, error) {
	key, err := fernet.DecodeKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("unable to decode crypto key: %v", err)
	}

	return &Encryptor{key: key}, nil
}

func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	token, err := fernet.EncryptAndSign([]byte(plaintext), e.key)
	if err != nil {
		return "", errors.Wrap(err, "encrypt")
	}

	return string(token), nil
}

// Decrypt verifies & decrypts a ciphertext produced by Encrypt.
// A zero ttl is used, so tokens never expire at this layer.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	plaintext := fernet.VerifyAndDecrypt([]byte(ciphertext), 0, []*fernet.Key{e.key})
	if plaintext == nil {
		return "", ErrInvalidCiphertext
	}

	return string(plaintext), nil
}
