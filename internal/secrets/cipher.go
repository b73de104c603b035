package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	autherrors "github.com/alexjbarnes/status-mcp/internal/errors"
	"github.com/alexjbarnes/status-mcp/internal/models"
)

const (
	// nonceSize is the GCM nonce length used for new ciphertext.
	nonceSize = 12

	// legacyNonceSize is accepted on decrypt for blobs written with a
	// 16-byte IV.
	legacyNonceSize = 16

	tagSize = 16
)

// keyCandidate is one key the cipher may try on decrypt.
type keyCandidate struct {
	name   string
	derive func() ([]byte, error)
}

// Cipher encrypts tenant configuration with AES-256-GCM. Output is
// "hex(nonce):hex(tag):hex(ciphertext)".
type Cipher struct {
	master *MasterKey
	// candidates are tried in order on decrypt. The first entry is also
	// the encryption key.
	candidates []keyCandidate
}

// NewCipher builds a cipher over the master key. Decryption tries the
// current derived key first, then the legacy padded key.
func NewCipher(master *MasterKey) *Cipher {
	return &Cipher{
		master: master,
		candidates: []keyCandidate{
			{name: "current", derive: master.DeriveKeyBytes},
			{name: "legacy", derive: master.LegacyKeyBytes},
		},
	}
}

// Ready reports whether a master key is configured.
func (c *Cipher) Ready() bool {
	return c.master.HasKey()
}

// Encrypt serialises cfg to JSON and seals it with a fresh nonce.
func (c *Cipher) Encrypt(cfg models.TenantConfig) (string, error) {
	key, err := c.candidates[0].derive()
	if err != nil {
		return "", err
	}

	plaintext, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}

	gcm, err := newGCM(key, nonceSize)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt opens a blob produced by Encrypt. Malformed input fails before
// any key is tried. Each key candidate is tried in order; if none
// authenticates the blob a single ErrDecrypt is returned.
func (c *Cipher) Decrypt(blob string) (models.TenantConfig, error) {
	nonce, sealed, err := parseBlob(blob)
	if err != nil {
		return nil, err
	}

	var failed []string

	for _, cand := range c.candidates {
		key, err := cand.derive()
		if err != nil {
			return nil, err
		}

		plaintext, err := open(key, nonce, sealed)
		if err != nil {
			failed = append(failed, cand.name)
			continue
		}

		var cfg models.TenantConfig
		if err := json.Unmarshal(plaintext, &cfg); err != nil {
			return nil, fmt.Errorf("%w: decoding config: %v", autherrors.ErrDecrypt, err)
		}

		return cfg, nil
	}

	return nil, fmt.Errorf("%w: authentication failed with keys [%s]", autherrors.ErrDecrypt, strings.Join(failed, ", "))
}

// parseBlob splits and hex-decodes the three segments, returning the
// nonce and ciphertext with the tag appended (the layout GCM expects).
func parseBlob(blob string) (nonce, sealed []byte, err error) {
	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		return nil, nil, fmt.Errorf("%w: malformed ciphertext (want 3 segments, got %d)", autherrors.ErrDecrypt, len(parts))
	}

	decoded := make([][]byte, 3)

	for i, p := range parts {
		if p == "" {
			return nil, nil, fmt.Errorf("%w: malformed ciphertext (empty segment %d)", autherrors.ErrDecrypt, i)
		}

		b, err := hex.DecodeString(p)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: malformed ciphertext (segment %d is not hex)", autherrors.ErrDecrypt, i)
		}

		decoded[i] = b
	}

	nonce, tag, ct := decoded[0], decoded[1], decoded[2]
	if len(nonce) != nonceSize && len(nonce) != legacyNonceSize {
		return nil, nil, fmt.Errorf("%w: malformed ciphertext (nonce length %d)", autherrors.ErrDecrypt, len(nonce))
	}

	if len(tag) != tagSize {
		return nil, nil, fmt.Errorf("%w: malformed ciphertext (tag length %d)", autherrors.ErrDecrypt, len(tag))
	}

	sealed = make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	return nonce, sealed, nil
}

func open(key, nonce, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key, len(nonce))
	if err != nil {
		return nil, err
	}

	return gcm.Open(nil, nonce, sealed, nil)
}

func newGCM(key []byte, nonceLen int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	if nonceLen == nonceSize {
		return cipher.NewGCM(block)
	}

	return cipher.NewGCMWithNonceSize(block, nonceLen)
}
