package notification

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/jwalitptl/onboarding-api/pkg/security"
)

const sealedPrefix = "enc:"

// sealedFields are payload entries that never reach the outbox in clear text.
var sealedFields = []string{"temporary_password"}

// PayloadSealer encrypts secret payload fields before a notification is queued and
// decrypts them right before rendering. A nil *PayloadSealer leaves payloads untouched.
type PayloadSealer struct {
	cipher security.FieldCipher
}

// NewPayloadSealer builds a sealer from a base64 AES key. An empty key returns nil.
func NewPayloadSealer(key string) (*PayloadSealer, error) {
	if key == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload key: %w", err)
	}
	c, err := security.NewFieldCipher(raw)
	if err != nil {
		return nil, err
	}
	return &PayloadSealer{cipher: c}, nil
}

func (s *PayloadSealer) Seal(payload map[string]interface{}) error {
	if s == nil {
		return nil
	}
	for _, field := range sealedFields {
		v, ok := payload[field].(string)
		if !ok || v == "" || strings.HasPrefix(v, sealedPrefix) {
			continue
		}
		ciphertext, err := s.cipher.Seal(field, []byte(v))
		if err != nil {
			return fmt.Errorf("failed to seal %s: %w", field, err)
		}
		payload[field] = sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext)
	}
	return nil
}

func (s *PayloadSealer) Open(payload map[string]interface{}) error {
	for _, field := range sealedFields {
		v, ok := payload[field].(string)
		if !ok || !strings.HasPrefix(v, sealedPrefix) {
			continue
		}
		if s == nil {
			return fmt.Errorf("%s is sealed but no payload key is configured", field)
		}
		ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(v, sealedPrefix))
		if err != nil {
			return fmt.Errorf("failed to decode sealed %s: %w", field, err)
		}
		plaintext, err := s.cipher.Open(field, ciphertext)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", field, err)
		}
		payload[field] = string(plaintext)
	}
	return nil
}
