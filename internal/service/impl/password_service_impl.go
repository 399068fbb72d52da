package impl

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"

	"attendance-auth/internal/domain"

	"golang.org/x/crypto/argon2"
)

type Argon2Params struct {
	// Stored alongside the hash so verification uses the original cost.
	Time    uint32 `json:"t"` // iterations
	Memory  uint32 `json:"m"` // KiB
	Threads uint8  `json:"p"` // parallelism
	KeyLen  uint32 `json:"k"` // bytes
	SaltLen uint32 `json:"s"` // bytes
}

type PasswordServiceImpl struct {
	currentVer int          // bump when policy changes
	cur        Argon2Params // policy for new hashes
	algoName   string
}

// NewPasswordServiceArgon2id returns the service with parameters tuned for
// roughly 100ms per hash on current server hardware.
func NewPasswordServiceArgon2id() *PasswordServiceImpl {
	return &PasswordServiceImpl{
		currentVer: 1,
		algoName:   "argon2id",
		cur: Argon2Params{
			Time:    3,
			Memory:  64 * 1024, // 64 MiB
			Threads: 1,
			KeyLen:  32,
			SaltLen: 16,
		},
	}
}

// Apply hashes the plaintext and writes the credential columns onto the
// account. It is the only write path for credentials: no caller ever stores a
// pre-hashed password, so there is no "already hashed" detection anywhere.
func (p *PasswordServiceImpl) Apply(a *domain.Account, password string) error {
	hash, salt, paramsJSON, err := p.hash(password)
	if err != nil {
		return err
	}
	a.PasswordAlgo = p.algoName
	a.PasswordHash = hash
	a.PasswordSalt = salt
	a.PasswordParams = paramsJSON
	a.PasswordVer = p.currentVer
	return nil
}

func (p *PasswordServiceImpl) hash(password string) (hash, salt, paramsJSON []byte, err error) {
	if password == "" {
		return nil, nil, nil, ErrEmptyPassword
	}
	salt = make([]byte, p.cur.SaltLen)
	if _, err = rand.Read(salt); err != nil {
		return nil, nil, nil, err
	}
	hash = argon2.IDKey([]byte(password), salt, p.cur.Time, p.cur.Memory, p.cur.Threads, p.cur.KeyLen)
	paramsJSON, err = json.Marshal(p.cur)
	if err != nil {
		return nil, nil, nil, err
	}
	return hash, salt, paramsJSON, nil
}

// Verify compares in constant time against the stored hash. It has no side
// effects and reports only booleans; the caller decides what a mismatch means.
func (p *PasswordServiceImpl) Verify(password string, cred interface {
	GetAlgo() string
	GetHash() []byte
	GetSalt() []byte
	GetParamsJSON() []byte
	GetPasswordVer() int
}) (rehashNeeded bool, ok bool) {
	if cred.GetAlgo() != p.algoName {
		return true, false
	}
	var stored Argon2Params
	if err := json.Unmarshal(cred.GetParamsJSON(), &stored); err != nil {
		return true, false
	}
	calculated := argon2.IDKey([]byte(password), cred.GetSalt(), stored.Time, stored.Memory, stored.Threads, stored.KeyLen)
	ok = subtle.ConstantTimeCompare(calculated, cred.GetHash()) == 1

	rehashNeeded = ok && (cred.GetPasswordVer() != p.currentVer ||
		stored.Time != p.cur.Time ||
		stored.Memory != p.cur.Memory ||
		stored.Threads != p.cur.Threads ||
		stored.KeyLen != p.cur.KeyLen ||
		stored.SaltLen != p.cur.SaltLen)

	return rehashNeeded, ok
}
