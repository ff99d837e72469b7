// Package wecom implements the WeCom callback envelope (signature, AES-CBC
// payload encryption) and a small client for the agent message API.
//
// The crypto functions are stateless: keys and inputs are passed explicitly
// so concurrent webhook requests share nothing.
package wecom

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
)

const (
	randomPrefixLen = 16
	lengthFieldLen  = 4
	// padBlockSize is the vendor's PKCS#7 block size; a multiple of aes.BlockSize.
	padBlockSize = 32
)

// Envelope holds the signed, encrypted parts of one callback request.
type Envelope struct {
	Signature  string
	Timestamp  string
	Nonce      string
	Ciphertext string
}

// CheckParams reports ErrMissingParameter when a query parameter needed for
// verification is absent.
func (e Envelope) CheckParams() error {
	if e.Signature == "" || e.Timestamp == "" || e.Nonce == "" {
		return ErrMissingParameter
	}
	return nil
}

// Payload is a decrypted callback body together with the tenant (corp id)
// that was embedded next to it.
type Payload struct {
	Body     []byte
	TenantID string
}

// Signature computes the callback signature: SHA-1 over the four values
// sorted lexically and concatenated, hex encoded.
func Signature(token, timestamp, nonce, payload string) string {
	parts := []string{token, timestamp, nonce, payload}
	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(sum[:])
}

// VerifySignature fails closed: an empty input is ErrMissingParameter and
// never reaches the hash.
func VerifySignature(token, timestamp, nonce, payload, signature string) error {
	if token == "" || timestamp == "" || nonce == "" || payload == "" || signature == "" {
		return ErrMissingParameter
	}
	expected := Signature(token, timestamp, nonce, payload)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}

// Verify checks e against token.
func (e Envelope) Verify(token string) error {
	return VerifySignature(token, e.Timestamp, e.Nonce, e.Ciphertext, e.Signature)
}

// DecodeKey decodes the base64 EncodingAESKey from the admin console. The
// console form is 43 characters with the trailing "=" dropped.
func DecodeKey(encodingAESKey string) ([]byte, error) {
	s := strings.TrimSpace(encodingAESKey)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	}
	return nil, fmt.Errorf("%w: decoded length %d, want 16, 24 or 32", ErrInvalidKey, len(key))
}

// Decrypt opens a base64 ciphertext. The plaintext layout is
// [16 random][4 byte big-endian N][N byte body][tenant id] plus padding.
func Decrypt(ciphertext string, key []byte, tenantID string) (*Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, &DecryptionError{Reason: ReasonBase64, Err: err}
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, &DecryptionError{Reason: ReasonBlockSize, Err: fmt.Errorf("ciphertext length %d", len(raw))}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &DecryptionError{Reason: ReasonBlockSize, Err: err}
	}

	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, key[:aes.BlockSize]).CryptBlocks(plain, raw)

	plain, err = unpad(plain)
	if err != nil {
		return nil, &DecryptionError{Reason: ReasonPadding, Err: err}
	}

	if len(plain) < randomPrefixLen+lengthFieldLen {
		return nil, &DecryptionError{Reason: ReasonLength, Err: fmt.Errorf("plaintext too short (%d bytes)", len(plain))}
	}
	content := plain[randomPrefixLen:]
	n := binary.BigEndian.Uint32(content[:lengthFieldLen])
	rest := uint64(len(content) - lengthFieldLen)
	// the tenant suffix must be non-empty
	if uint64(n) >= rest {
		return nil, &DecryptionError{Reason: ReasonLength, Err: fmt.Errorf("declared length %d leaves no tenant id in %d bytes", n, rest)}
	}

	body := content[lengthFieldLen : lengthFieldLen+int(n)]
	from := string(content[lengthFieldLen+int(n):])
	if from != tenantID {
		return nil, &DecryptionError{Reason: ReasonTenantMismatch, Err: ErrTenantMismatch}
	}

	return &Payload{Body: bytes.Clone(body), TenantID: from}, nil
}

// Encrypt is the inverse of Decrypt.
func Encrypt(plaintext, key []byte, tenantID string) (string, error) {
	return encrypt(rand.Reader, plaintext, key, tenantID)
}

func encrypt(random io.Reader, plaintext, key []byte, tenantID string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	buf := make([]byte, randomPrefixLen+lengthFieldLen, randomPrefixLen+lengthFieldLen+len(plaintext)+len(tenantID)+padBlockSize)
	if _, err := io.ReadFull(random, buf[:randomPrefixLen]); err != nil {
		return "", fmt.Errorf("read random prefix: %w", err)
	}
	binary.BigEndian.PutUint32(buf[randomPrefixLen:], uint32(len(plaintext)))
	buf = append(buf, plaintext...)
	buf = append(buf, tenantID...)
	buf = pad(buf)

	out := make([]byte, len(buf))
	cipher.NewCBCEncrypter(block, key[:aes.BlockSize]).CryptBlocks(out, buf)
	return base64.StdEncoding.EncodeToString(out), nil
}

func pad(b []byte) []byte {
	n := padBlockSize - len(b)%padBlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > padBlockSize || n > len(b) {
		return nil, fmt.Errorf("invalid pad count %d", n)
	}
	return b[:len(b)-n], nil
}
