// Package seal encrypts small secrets, such as the session token, before they hit device storage.
package seal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 2
)

var ErrUnreadable = errors.New("sealed value is unreadable")

// Box seals with a key derived from a passphrase. A fresh salt and nonce are drawn per value.
type Box struct {
	passphrase []byte
}

func New(passphrase string) (*Box, error) {
	if passphrase == "" {
		return nil, errors.New("seal: empty passphrase")
	}
	return &Box{passphrase: []byte(passphrase)}, nil
}

// Seal returns base64(salt | nonce | secretbox).
func (b *Box) Seal(plaintext string) (string, error) {
	buf := make([]byte, saltSize+nonceSize, saltSize+nonceSize+len(plaintext)+secretbox.Overhead)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("seal: read random: %w", err)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], buf[saltSize:])
	key := b.key(buf[:saltSize])

	out := secretbox.Seal(buf, []byte(plaintext), &nonce, &key)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (b *Box) Open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < saltSize+nonceSize+secretbox.Overhead {
		return "", ErrUnreadable
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[saltSize:saltSize+nonceSize])
	key := b.key(raw[:saltSize])

	plain, ok := secretbox.Open(nil, raw[saltSize+nonceSize:], &nonce, &key)
	if !ok {
		return "", ErrUnreadable
	}

	return string(plain), nil
}

func (b *Box) key(salt []byte) [keySize]byte {
	var key [keySize]byte
	copy(key[:], argon2.IDKey(b.passphrase, salt, argonTime, argonMemory, argonThreads, keySize))
	return key
}
