package wallet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"filippo.io/age"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/fileutil"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

const (
	walletFileExtension   = ".wallet"
	walletFilePermissions = 0o600
	walletDirPermissions  = 0o750
)

// ErrDecryptionFailed indicates a wrong passphrase or a corrupted file.
var ErrDecryptionFailed = walleterr.ErrDecryptionFailed

// Storage persists wallet records with their encrypted seeds.
type Storage interface {
	Save(w *Wallet, seed, passphrase []byte) error
	Load(name string, passphrase []byte) (*Wallet, *Secret, error)
	LoadMetadata(name string) (*Wallet, error)
	Exists(name string) (bool, error)
	List() ([]string, error)
	Delete(name string) error
}

type walletFile struct {
	Wallet        *Wallet `json:"wallet"`
	EncryptedSeed []byte  `json:"encrypted_seed"`
}

// FileStorage keeps one age-encrypted file per wallet in a directory.
type FileStorage struct {
	basePath string
}

// NewFileStorage returns a FileStorage rooted at basePath.
func NewFileStorage(basePath string) *FileStorage {
	return &FileStorage{basePath: basePath}
}

// Save encrypts seed with passphrase and writes a new wallet file.
func (s *FileStorage) Save(w *Wallet, seed, passphrase []byte) error {
	if err := ValidateWalletName(w.Name); err != nil {
		return err
	}
	exists, err := s.Exists(w.Name)
	if err != nil {
		return err
	}
	if exists {
		return ErrWalletExists
	}
	if err := os.MkdirAll(s.basePath, walletDirPermissions); err != nil {
		return fmt.Errorf("creating wallet directory: %w", err)
	}

	encrypted, err := encrypt(seed, string(passphrase))
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(walletFile{Wallet: w, EncryptedSeed: encrypted}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling wallet: %w", err)
	}
	return fileutil.WriteAtomic(s.path(w.Name), data, walletFilePermissions)
}

// Load reads a wallet and decrypts its seed.
func (s *FileStorage) Load(name string, passphrase []byte) (*Wallet, *Secret, error) {
	wf, err := s.read(name)
	if err != nil {
		return nil, nil, err
	}
	seed, err := decrypt(wf.EncryptedSeed, string(passphrase))
	if err != nil {
		return nil, nil, ErrDecryptionFailed
	}
	defer Zero(seed)
	return wf.Wallet, NewSecret(seed), nil
}

// LoadMetadata reads the public record without touching the seed.
func (s *FileStorage) LoadMetadata(name string) (*Wallet, error) {
	wf, err := s.read(name)
	if err != nil {
		return nil, err
	}
	return wf.Wallet, nil
}

// Exists reports whether a wallet file exists.
func (s *FileStorage) Exists(name string) (bool, error) {
	if err := ValidateWalletName(name); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(name))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}

// List returns the names of all wallets, sorted.
func (s *FileStorage) List() ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading wallet directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), walletFileExtension) {
			names = append(names, strings.TrimSuffix(e.Name(), walletFileExtension))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a wallet file.
func (s *FileStorage) Delete(name string) error {
	exists, err := s.Exists(name)
	if err != nil {
		return err
	}
	if !exists {
		return ErrWalletNotFound
	}
	return os.Remove(s.path(name))
}

func (s *FileStorage) read(name string) (*walletFile, error) {
	if err := ValidateWalletName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading wallet file: %w", err)
	}
	var wf walletFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parsing wallet file: %w", err)
	}
	if wf.Wallet == nil {
		return nil, walleterr.WithDetails(walleterr.ErrConfigInvalid, map[string]string{"wallet": name})
	}
	return &wf, nil
}

// path joins a validated name; ValidateWalletName rules out separators.
func (s *FileStorage) path(name string) string {
	return filepath.Join(s.basePath, name+walletFileExtension)
}

func encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("initializing encryption: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing encrypted data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}
	return buf.Bytes(), nil
}

func decrypt(ciphertext []byte, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
