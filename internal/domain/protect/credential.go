// Package protect handles password-protected input files and the at-rest
// encryption of the credentials a user supplies to open them. A stored
// credential survives only until its first successful use.
package protect

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	keySize    = 32
	pbkdf2Iter = 64_000
)

// ErrCredentialCorrupt indicates a sealed blob that cannot be opened with
// the configured server secret.
var ErrCredentialCorrupt = errors.New("credential blob corrupt or wrong secret")

// Keeper seals and opens credential blobs with AES-256-GCM. Keys are derived
// per blob from the server secret and a random salt.
type Keeper struct {
	secret []byte
}

func NewKeeper(secret string) (*Keeper, error) {
	if secret == "" {
		return nil, errors.New("credential secret is required")
	}
	return &Keeper{secret: []byte(secret)}, nil
}

// Seal encrypts a plaintext credential into a self-contained blob:
// salt || nonce || ciphertext.
func (k *Keeper) Seal(plaintext string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := k.cipher(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	blob := append(salt, nonce...)
	return gcm.Seal(blob, nonce, []byte(plaintext), nil), nil
}

// Open decrypts a sealed blob back into the plaintext credential.
func (k *Keeper) Open(blob []byte) (string, error) {
	if len(blob) < saltSize {
		return "", ErrCredentialCorrupt
	}
	salt := blob[:saltSize]

	gcm, err := k.cipher(salt)
	if err != nil {
		return "", err
	}
	if len(blob) < saltSize+gcm.NonceSize() {
		return "", ErrCredentialCorrupt
	}
	nonce := blob[saltSize : saltSize+gcm.NonceSize()]
	ciphertext := blob[saltSize+gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrCredentialCorrupt
	}
	return string(plaintext), nil
}

func (k *Keeper) cipher(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(k.secret, salt, pbkdf2Iter, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
