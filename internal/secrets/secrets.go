// Package secrets — запечатывание учётных данных интеграций публикации.
//
// Учётные данные хранятся в конфигурации шага publish в запечатанном
// виде (nacl/secretbox) и расшифровываются только в момент публикации.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// Ошибки пакета.
var (
	// ErrBadKey — ключ не 32 байта.
	ErrBadKey = errors.New("secret key must be 32 bytes")

	// ErrOpenFailed — расшифровка не удалась (неверный ключ или повреждённые данные).
	ErrOpenFailed = errors.New("failed to open sealed credentials")
)

const nonceLen = 24

// Box — симметричное запечатывание с фиксированным ключом процесса.
type Box struct {
	key [32]byte
}

// NewBox создаёт Box из hex-представления 32-байтового ключа
// (переменная окружения MORANA_SECRET_KEY).
func NewBox(hexKey string) (*Box, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	if len(raw) != 32 {
		return nil, ErrBadKey
	}

	var b Box
	copy(b.key[:], raw)
	return &b, nil
}

// Seal запечатывает данные. Возвращает base64(nonce || ciphertext).
func (b *Box) Seal(plaintext []byte) (string, error) {
	var nonce [nonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open расшифровывает результат Seal.
func (b *Box) Open(sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	if len(raw) < nonceLen {
		return nil, ErrOpenFailed
	}

	var nonce [nonceLen]byte
	copy(nonce[:], raw[:nonceLen])

	plaintext, ok := secretbox.Open(nil, raw[nonceLen:], &nonce, &b.key)
	if !ok {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}
