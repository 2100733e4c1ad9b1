package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a buffer is used after Destroy
var ErrDestroyed = errors.New("secure buffer has been destroyed")

// SecureBuffer holds one secret value inside a memguard enclave
type SecureBuffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	size      int
	destroyed bool
}

// NewSecureBuffer seals data into an enclave. memguard wipes the source
// slice once it has been copied.
func NewSecureBuffer(data []byte) *SecureBuffer {
	size := len(data)
	if size == 0 {
		// memguard refuses empty enclaves
		return &SecureBuffer{}
	}
	return &SecureBuffer{
		enclave: memguard.NewEnclave(data),
		size:    size,
	}
}

// FromString seals a string value
func FromString(value string) *SecureBuffer {
	return NewSecureBuffer([]byte(value))
}

// Len returns the plaintext length
func (s *SecureBuffer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Open decrypts the enclave into a locked buffer. The caller must Destroy it.
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return nil, ErrDestroyed
	}
	if s.enclave == nil {
		return memguard.NewBuffer(0), nil
	}
	return s.enclave.Open()
}

// Reveal returns the plaintext as a string
func (s *SecureBuffer) Reveal() (string, error) {
	locked, err := s.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()

	return string(locked.Bytes()), nil
}

// Destroy drops the enclave. It is safe to call more than once.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enclave = nil
	s.size = 0
	s.destroyed = true
}
