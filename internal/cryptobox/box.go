package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"

	"github.com/i474232898/weather-diary-sync/internal/diary"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/pbkdf2"
)

const (
	keyIterations = 100000
	keyLen        = 32
	nonceLen      = 12
	keySalt       = "weather-diary-salt"
	keyPepper     = "weather-diary-secret-salt-2025"
)

// DecryptFailedTitle replaces the title of an entry whose ciphertext no
// longer decrypts, so the entry stays visible instead of vanishing.
const DecryptFailedTitle = "⚠️ 解密失败"

var base64Shape = regexp.MustCompile(`^[A-Za-z0-9+/]+=*$`)

// Box encrypts and decrypts diary text with a key derived from the user
// id. Derivation is deliberately slow, so derived keys are cached per id.
type Box struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func New() *Box {
	return &Box{keys: make(map[string][]byte)}
}

func (b *Box) key(userID string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if k, ok := b.keys[userID]; ok {
		return k
	}
	k := pbkdf2.Key([]byte(userID+keyPepper), []byte(keySalt), keyIterations, keyLen, sha256.New)
	b.keys[userID] = k
	return k
}

// Encrypt seals plaintext as base64(nonce || ciphertext).
func (b *Box) Encrypt(userID, plaintext string) (string, error) {
	gcm, err := b.aead(userID)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func (b *Box) Decrypt(userID, encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(raw) <= nonceLen {
		return "", errors.New("ciphertext too short")
	}
	gcm, err := b.aead(userID)
	if err != nil {
		return "", err
	}
	plain, err := gcm.Open(nil, raw[:nonceLen], raw[nonceLen:], nil)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return string(plain), nil
}

func (b *Box) aead(userID string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key(userID))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// LooksEncrypted is the heuristic used before decrypting remote payloads:
// legacy plaintext rows predate encryption and must pass through as-is.
func LooksEncrypted(s string) bool {
	return len(s) > 20 && base64Shape.MatchString(s)
}

// EncryptEntry seals the title and content; everything else stays clear
// so the remote side can still sort and dedupe.
func (b *Box) EncryptEntry(userID string, e diary.Entry) (diary.Entry, error) {
	title, err := b.Encrypt(userID, e.Title)
	if err != nil {
		return diary.Entry{}, fmt.Errorf("encrypt title: %w", err)
	}
	content, err := b.Encrypt(userID, e.Content)
	if err != nil {
		return diary.Entry{}, fmt.Errorf("encrypt content: %w", err)
	}
	e.Title = title
	e.Content = content
	return e, nil
}

// DecryptEntry reverses EncryptEntry. Plaintext fields pass through, and
// an undecryptable entry comes back with a placeholder title rather than
// an error so one bad row never hides the rest.
func (b *Box) DecryptEntry(userID string, e diary.Entry) diary.Entry {
	e.Title = b.decryptField(userID, e.ID, "title", e.Title)
	e.Content = b.decryptField(userID, e.ID, "content", e.Content)
	return e
}

func (b *Box) decryptField(userID, id, field, value string) string {
	if !LooksEncrypted(value) {
		return value
	}
	plain, err := b.Decrypt(userID, value)
	if err != nil {
		logrus.WithFields(logrus.Fields{"entry": id, "field": field}).
			WithError(err).Warn("decrypt failed, keeping placeholder")
		if field == "title" {
			return DecryptFailedTitle
		}
		return ""
	}
	return plain
}

// DecryptList decrypts every entry in place order.
func (b *Box) DecryptList(userID string, entries []diary.Entry) []diary.Entry {
	out := make([]diary.Entry, len(entries))
	for i, e := range entries {
		out[i] = b.DecryptEntry(userID, e)
	}
	return out
}
