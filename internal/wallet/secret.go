package wallet

import (
	"runtime"
	"sync"
)

// Secret holds seed bytes in memory that is locked where the platform
// allows it and zeroed on Destroy.
type Secret struct {
	mu     sync.Mutex
	data   []byte
	locked bool
}

// NewSecret copies data into a new Secret. The caller still owns data.
func NewSecret(data []byte) *Secret {
	s := &Secret{data: make([]byte, len(data))}
	copy(s.data, data)
	s.locked = mlock(s.data)
	runtime.SetFinalizer(s, (*Secret).Destroy)
	return s
}

// Bytes returns the secret, or nil once destroyed.
func (s *Secret) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// Locked reports whether the memory is locked.
func (s *Secret) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Destroy zeroes and releases the secret. It is safe to call twice.
func (s *Secret) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return
	}
	Zero(s.data)
	if s.locked {
		munlock(s.data)
		s.locked = false
	}
	s.data = nil
	runtime.SetFinalizer(s, nil)
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
