// Package secret seals mail credentials at rest with NaCl secretbox.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql/driver"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sb1:"

var ErrNoKey = errors.New("credentials key not configured")

var (
	keyMu sync.RWMutex
	key   *[32]byte
)

// SetKey installs the process-wide sealing key. An empty passphrase disables
// sealing; values are then stored as given.
func SetKey(passphrase string) {
	keyMu.Lock()
	defer keyMu.Unlock()
	if passphrase == "" {
		key = nil
		return
	}
	k := sha256.Sum256([]byte(passphrase))
	key = &k
}

func currentKey() *[32]byte {
	keyMu.RLock()
	defer keyMu.RUnlock()
	return key
}

func Seal(plaintext string) (string, error) {
	k := currentKey()
	if k == nil || plaintext == "" {
		return plaintext, nil
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, k)
	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

func Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	k := currentKey()
	if k == nil {
		return "", ErrNoKey
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	if len(raw) < 24+secretbox.Overhead {
		return "", errors.New("sealed value too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, k)
	if !ok {
		return "", errors.New("sealed value failed authentication")
	}
	return string(plain), nil
}

// String is a gorm column type that is sealed on write and opened on read.
type String string

func (s String) Value() (driver.Value, error) {
	if s == "" {
		return nil, nil
	}
	return Seal(string(s))
}

func (s *String) Scan(value interface{}) error {
	if value == nil {
		*s = ""
		return nil
	}
	var stored string
	switch v := value.(type) {
	case string:
		stored = v
	case []byte:
		stored = string(v)
	default:
		return fmt.Errorf("secret.String: unsupported scan type %T", value)
	}
	plain, err := Open(stored)
	if err != nil {
		return err
	}
	*s = String(plain)
	return nil
}

// GormDataType keeps migrations on a text column.
func (String) GormDataType() string {
	return "text"
}
