// Package state persists authorization state in a bbolt database:
// registered clients, encrypted connections, authorization codes,
// sessions and user-bound API keys. Secrets are stored only as hashes.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/alexjbarnes/status-mcp/internal/models"
	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory.
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	clientsBucket     = []byte("oauth_clients")
	connectionsBucket = []byte("connections")
	codesBucket       = []byte("auth_codes")
	sessionsBucket    = []byte("sessions")
	apiKeysBucket     = []byte("api_keys")
	// apiKeyIDsBucket maps API key ID to key hash.
	apiKeyIDsBucket = []byte("api_key_ids")

	allBuckets = [][]byte{
		clientsBucket,
		connectionsBucket,
		codesBucket,
		sessionsBucket,
		apiKeysBucket,
		apiKeyIDsBucket,
	}
)

// Redemption failures. Callers map all of them to invalid_grant.
var (
	ErrCodeNotFound = errors.New("authorization code not found")
	ErrCodeUsed     = errors.New("authorization code already used")
	ErrCodeExpired  = errors.New("authorization code expired")
)

// ErrClientLimit is returned by SaveClient when the client cap is reached.
var ErrClientLimit = errors.New("client registration limit reached")

// Validation failures for records that must carry a hash or ciphertext.
var (
	errNoCiphertext = errors.New("encrypted config is required for persistence")
	errNoCodeHash   = errors.New("code hash is required for persistence")
	errNoTokenHash  = errors.New("token hash is required for persistence")
	errNoKeyHash    = errors.New("key hash is required for persistence")
)

// HashSecret returns the SHA-256 hex digest of a secret. It is the key
// under which codes, session secrets and API keys are stored.
func HashSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// State wraps a bbolt database for all persistent authorization state.
type State struct {
	db *bolt.DB
}

// Load opens the state database at ~/.status-mcp/state.db.
func Load() (*State, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}

	return LoadAt(path)
}

// LoadAt opens a state database at the given path, creating it and its
// buckets if they do not exist. Useful for tests that need an isolated
// database.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// DefaultPath returns ~/.status-mcp/state.db.
func DefaultPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(dir, ".status-mcp", "state.db"), nil
}

func put(tx *bolt.Tx, bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return tx.Bucket(bucket).Put([]byte(key), data)
}

// get decodes the value at key into v. It reports false when the key
// does not exist.
func get(tx *bolt.Tx, bucket []byte, key string, v any) (bool, error) {
	data := tx.Bucket(bucket).Get([]byte(key))
	if data == nil {
		return false, nil
	}

	return true, json.Unmarshal(data, v)
}

// --- Clients ---

// SaveClient persists a registered OAuth client. When maxClients is
// positive, a new client is refused with ErrClientLimit once the bucket
// holds that many; the count and the write share one transaction.
func (s *State) SaveClient(c models.Client, maxClients int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(clientsBucket)
		if maxClients > 0 && b.Get([]byte(c.ClientID)) == nil && countKeys(b) >= maxClients {
			return ErrClientLimit
		}

		return put(tx, clientsBucket, c.ClientID, c)
	})
}

// GetClient returns a registered client by ID, or nil if not found.
func (s *State) GetClient(clientID string) (*models.Client, error) {
	var c *models.Client

	err := s.db.View(func(tx *bolt.Tx) error {
		var found models.Client

		ok, err := get(tx, clientsBucket, clientID, &found)
		if ok && err == nil {
			c = &found
		}

		return err
	})

	return c, err
}

// ClientCount returns the number of registered OAuth clients.
func (s *State) ClientCount() (int, error) {
	return s.count(clientsBucket)
}

// --- Connections ---

// GetConnection returns a connection by ID, or nil if not found.
func (s *State) GetConnection(id string) (*models.Connection, error) {
	var c *models.Connection

	err := s.db.View(func(tx *bolt.Tx) error {
		var found models.Connection

		ok, err := get(tx, connectionsBucket, id, &found)
		if ok && err == nil {
			c = &found
		}

		return err
	})

	return c, err
}

// ConnectionCount returns the number of stored connections.
func (s *State) ConnectionCount() (int, error) {
	return s.count(connectionsBucket)
}

func (s *State) count(bucket []byte) (int, error) {
	var n int

	err := s.db.View(func(tx *bolt.Tx) error {
		n = countKeys(tx.Bucket(bucket))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", bucket, err)
	}

	return n, nil
}

func countKeys(b *bolt.Bucket) int {
	n := 0

	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}

	return n
}

// DeleteConnection removes a connection and every authorization code
// that belongs to it.
func (s *State) DeleteConnection(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(connectionsBucket).Delete([]byte(id)); err != nil {
			return err
		}

		codes := tx.Bucket(codesBucket)

		var doomed [][]byte

		err := codes.ForEach(func(k, v []byte) error {
			var ac models.AuthorizationCode
			if err := json.Unmarshal(v, &ac); err != nil {
				return err
			}

			if ac.ConnectionID == id {
				doomed = append(doomed, append([]byte(nil), k...))
			}

			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range doomed {
			if err := codes.Delete(k); err != nil {
				return err
			}
		}

		return nil
	})
}

// --- Authorization codes ---

// SaveConnectionWithCode persists a new connection and its first
// authorization code in one transaction, so a code never points at a
// connection that failed to save.
func (s *State) SaveConnectionWithCode(c models.Connection, ac models.AuthorizationCode) error {
	if c.EncryptedConfig == "" {
		return errNoCiphertext
	}

	if ac.CodeHash == "" {
		return errNoCodeHash
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := put(tx, connectionsBucket, c.ID, c); err != nil {
			return err
		}

		return put(tx, codesBucket, ac.CodeHash, ac)
	})
}

// GetCode returns an authorization code by hash, or nil if not found.
func (s *State) GetCode(codeHash string) (*models.AuthorizationCode, error) {
	var ac *models.AuthorizationCode

	err := s.db.View(func(tx *bolt.Tx) error {
		var found models.AuthorizationCode

		ok, err := get(tx, codesBucket, codeHash, &found)
		if ok && err == nil {
			ac = &found
		}

		return err
	})

	return ac, err
}

// RedeemCode atomically marks an unused, unexpired code as used. The
// whole check-and-mark runs inside a single bbolt write transaction,
// and bbolt serialises writers, so two concurrent redemptions of the
// same code cannot both succeed.
//
// check runs inside the transaction after the used/expired checks; a
// non-nil result aborts redemption and leaves the code unused. Expired
// codes are deleted as a side effect. When the code exists it is
// returned alongside any redemption error so callers can audit what it
// was bound to.
func (s *State) RedeemCode(codeHash string, now time.Time, check func(*models.AuthorizationCode) error) (*models.AuthorizationCode, error) {
	var (
		found     *models.AuthorizationCode
		redeemErr error
	)

	err := s.db.Update(func(tx *bolt.Tx) error {
		var ac models.AuthorizationCode

		ok, err := get(tx, codesBucket, codeHash, &ac)
		if err != nil {
			return err
		}

		if ok {
			found = &ac
		}

		switch {
		case !ok:
			redeemErr = ErrCodeNotFound
			return nil
		case ac.UsedAt != nil:
			redeemErr = ErrCodeUsed
			return nil
		case ac.Expired(now):
			redeemErr = ErrCodeExpired
			return tx.Bucket(codesBucket).Delete([]byte(codeHash))
		}

		if check != nil {
			if err := check(&ac); err != nil {
				redeemErr = err
				return nil
			}
		}

		usedAt := now
		ac.UsedAt = &usedAt

		return put(tx, codesBucket, codeHash, ac)
	})
	if err != nil {
		return nil, fmt.Errorf("redeeming code: %w", err)
	}

	return found, redeemErr
}

// --- Sessions ---

// SaveSession persists a session. TokenHash must be set; the raw
// session secret is never stored.
func (s *State) SaveSession(sess models.Session) error {
	if sess.TokenHash == "" {
		return errNoTokenHash
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, sessionsBucket, sess.ID, sess)
	})
}

// GetSession returns a session by ID, or nil if not found.
func (s *State) GetSession(id string) (*models.Session, error) {
	var sess *models.Session

	err := s.db.View(func(tx *bolt.Tx) error {
		var found models.Session

		ok, err := get(tx, sessionsBucket, id, &found)
		if ok && err == nil {
			sess = &found
		}

		return err
	})

	return sess, err
}

// RevokeSession marks a session revoked. Unknown IDs are a no-op.
func (s *State) RevokeSession(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		var sess models.Session

		ok, err := get(tx, sessionsBucket, id, &sess)
		if err != nil || !ok {
			return err
		}

		sess.Revoked = true

		return put(tx, sessionsBucket, id, sess)
	})
}

// --- API keys ---

// SaveConnectionWithAPIKey persists a connection and the API key bound
// to it in one transaction.
func (s *State) SaveConnectionWithAPIKey(c models.Connection, ak models.APIKey) error {
	if c.EncryptedConfig == "" {
		return errNoCiphertext
	}

	if ak.KeyHash == "" {
		return errNoKeyHash
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := put(tx, connectionsBucket, c.ID, c); err != nil {
			return err
		}

		if err := put(tx, apiKeysBucket, ak.KeyHash, ak); err != nil {
			return err
		}

		return tx.Bucket(apiKeyIDsBucket).Put([]byte(ak.ID), []byte(ak.KeyHash))
	})
}

// GetAPIKey returns an API key by hash, or nil if not found.
func (s *State) GetAPIKey(keyHash string) (*models.APIKey, error) {
	var ak *models.APIKey

	err := s.db.View(func(tx *bolt.Tx) error {
		var found models.APIKey

		ok, err := get(tx, apiKeysBucket, keyHash, &found)
		if ok && err == nil {
			ak = &found
		}

		return err
	})

	return ak, err
}

// TouchAPIKey records a successful use of an API key.
func (s *State) TouchAPIKey(keyHash string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		var ak models.APIKey

		ok, err := get(tx, apiKeysBucket, keyHash, &ak)
		if err != nil || !ok {
			return err
		}

		ak.LastUsedAt = &at

		return put(tx, apiKeysBucket, keyHash, ak)
	})
}

// RevokeAPIKey revokes the key with the given ID. It reports whether a
// key was newly revoked.
func (s *State) RevokeAPIKey(id string, at time.Time) (bool, error) {
	revoked := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		hash := tx.Bucket(apiKeyIDsBucket).Get([]byte(id))
		if hash == nil {
			return nil
		}

		var ak models.APIKey

		ok, err := get(tx, apiKeysBucket, string(hash), &ak)
		if err != nil || !ok || !ak.Active() {
			return err
		}

		ak.RevokedAt = &at
		revoked = true

		return put(tx, apiKeysBucket, ak.KeyHash, ak)
	})

	return revoked, err
}

// RevokeInactiveAPIKeys revokes every active key whose last use (or
// creation, if never used) is before cutoff. Returns the number revoked.
func (s *State) RevokeInactiveAPIKeys(cutoff, at time.Time) (int, error) {
	count := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(apiKeysBucket)

		var stale []models.APIKey

		err := b.ForEach(func(_, v []byte) error {
			var ak models.APIKey
			if err := json.Unmarshal(v, &ak); err != nil {
				return err
			}

			last := ak.CreatedAt
			if ak.LastUsedAt != nil {
				last = *ak.LastUsedAt
			}

			if ak.Active() && last.Before(cutoff) {
				stale = append(stale, ak)
			}

			return nil
		})
		if err != nil {
			return err
		}

		for _, ak := range stale {
			ak.RevokedAt = &at
			if err := put(tx, apiKeysBucket, ak.KeyHash, ak); err != nil {
				return err
			}
		}

		count = len(stale)

		return nil
	})

	return count, err
}

// --- Maintenance ---

// PurgeResult counts records removed by PurgeExpired.
type PurgeResult struct {
	Codes    int
	Sessions int
}

// PurgeExpired deletes authorization codes and sessions whose expiry is
// before now.
func (s *State) PurgeExpired(now time.Time) (PurgeResult, error) {
	var res PurgeResult

	err := s.db.Update(func(tx *bolt.Tx) error {
		n, err := purge(tx.Bucket(codesBucket), func(v []byte) (bool, error) {
			var ac models.AuthorizationCode
			if err := json.Unmarshal(v, &ac); err != nil {
				return false, err
			}

			return ac.Expired(now), nil
		})
		if err != nil {
			return err
		}

		res.Codes = n

		n, err = purge(tx.Bucket(sessionsBucket), func(v []byte) (bool, error) {
			var sess models.Session
			if err := json.Unmarshal(v, &sess); err != nil {
				return false, err
			}

			return !now.Before(sess.ExpiresAt), nil
		})
		res.Sessions = n

		return err
	})

	return res, err
}

func purge(b *bolt.Bucket, expired func(v []byte) (bool, error)) (int, error) {
	var doomed [][]byte

	err := b.ForEach(func(k, v []byte) error {
		gone, err := expired(v)
		if err != nil {
			return err
		}

		if gone {
			doomed = append(doomed, append([]byte(nil), k...))
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, k := range doomed {
		if err := b.Delete(k); err != nil {
			return 0, err
		}
	}

	return len(doomed), nil
}
