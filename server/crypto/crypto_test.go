package crypto

import (
	"testing"

	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/assert"
)

func testKey(t *testing.T) string {
	key := new(fernet.Key)
	if err := key.Generate(); err != nil {
		t.Fatal(err)
	}

	return key.Encode()
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encryptor, err := NewEncryptor(testKey(t))
	assert.Nil(t, err)

	ciphertext, err := encryptor.Encrypt("+15555550123")
	assert.Nil(t, err)
	assert.NotEqual(t, "+15555550123", ciphertext)

	plaintext, err := encryptor.Decrypt(ciphertext)
	assert.Nil(t, err)
	assert.Equal(t, "+15555550123", plaintext)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	encryptor, err := NewEncryptor(testKey(t))
	assert.Nil(t, err)

	_, err = encryptor.Decrypt("bogus-ciphertext")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestDecryptRejectsForeignKey(t *testing.T) {
	encryptor, err := NewEncryptor(testKey(t))
	assert.Nil(t, err)

	other, err := NewEncryptor(testKey(t))
	assert.Nil(t, err)

	ciphertext, err := encryptor.Encrypt("safeher")
	assert.Nil(t, err)

	_, err = other.Decrypt(ciphertext)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewEncryptorWithBadKey(t *testing.T) {
	_, err := NewEncryptor("definitely-not-a-key")
	assert.NotNil(t, err)
}
