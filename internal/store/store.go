// Package store keeps the watch-list: the wallets the bonded chat asked to
// follow. The list lives in memory and is mirrored to a single JSON document
// that is rewritten on every mutation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidAddress is returned when user input is not a 40-hex-char EVM address.
	ErrInvalidAddress = errors.New("invalid EVM address")
	// ErrCorruptState is returned by Load when the document exists but cannot be parsed.
	ErrCorruptState = errors.New("corrupt watch-list state")
)

// Wallet is one watched address and its display name.
type Wallet struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Key is the canonical form used for comparisons: lower-cased with a 0x
// prefix, so "0xAB.." and "ab.." collide.
func (w Wallet) Key() string { return addressKey(w.Address) }

func addressKey(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	return "0x" + strings.TrimPrefix(addr, "0x")
}

// document is the on-disk layout. Networks is round-tripped untouched.
type document struct {
	Wallets  []Wallet `json:"wallets"`
	Networks []string `json:"networks"`
}

// Store is the watch-list. It is safe for concurrent use.
type Store struct {
	path string
	log  *slog.Logger

	mu       sync.RWMutex
	wallets  []Wallet
	networks []string
}

// Load opens the document at path. A missing document is created empty;
// a document that exists but does not parse yields ErrCorruptState.
func Load(path string) (*Store, error) {
	s := &Store{
		path: path,
		log:  slog.With("component", "store"),
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.log.Info("creating watch-list document", "path", path)
		s.wallets = []Wallet{}
		s.networks = []string{}
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, path, err)
	}
	for i, w := range doc.Wallets {
		if !ValidAddress(w.Address) {
			return nil, fmt.Errorf("%w: %s: wallet %d has address %q", ErrCorruptState, path, i, w.Address)
		}
	}
	s.wallets = dedupe(doc.Wallets)
	s.networks = doc.Networks
	if s.networks == nil {
		s.networks = []string{}
	}
	s.log.Info("watch-list loaded", "path", path, "wallets", len(s.wallets))
	return s, nil
}

// ValidAddress reports whether addr is 40 hex characters with an optional
// 0x prefix. Any letter casing is accepted; checksums are not enforced.
func ValidAddress(addr string) bool {
	return common.IsHexAddress(strings.TrimSpace(addr))
}

// Add appends w unless an entry with the same address (case-insensitive)
// already exists. The document is written before Add returns.
func (s *Store) Add(_ context.Context, w Wallet) error {
	w.Address = strings.TrimSpace(w.Address)
	w.Name = strings.TrimSpace(w.Name)
	if !ValidAddress(w.Address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, w.Address)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.wallets {
		if existing.Key() == w.Key() {
			return nil
		}
	}

	prev := s.wallets
	s.wallets = append(append(make([]Wallet, 0, len(prev)+1), prev...), w)
	if err := s.persistLocked(); err != nil {
		s.wallets = prev
		return err
	}
	return nil
}

// Remove drops every entry whose address matches addr case-insensitively.
// Removing an absent address is not an error.
func (s *Store) Remove(_ context.Context, addr string) error {
	addr = strings.TrimSpace(addr)
	if !ValidAddress(addr) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	key := addressKey(addr)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.wallets
	kept := make([]Wallet, 0, len(prev))
	for _, w := range prev {
		if w.Key() != key {
			kept = append(kept, w)
		}
	}
	s.wallets = kept
	if err := s.persistLocked(); err != nil {
		s.wallets = prev
		return err
	}
	return nil
}

// List returns a copy of the wallets in insertion order.
func (s *Store) List() []Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Wallet(nil), s.wallets...)
}

// Networks returns the round-tripped networks field.
func (s *Store) Networks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.networks...)
}

// persistLocked rewrites the whole document via a temp file and rename.
// Callers hold s.mu.
func (s *Store) persistLocked() error {
	body, err := json.MarshalIndent(document{Wallets: s.wallets, Networks: s.networks}, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(append(body, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("store: rename into %s: %w", s.path, err)
	}
	return nil
}

// dedupe keeps the first occurrence of each address. Hand-edited documents
// may carry the same wallet twice in different casing.
func dedupe(in []Wallet) []Wallet {
	out := make([]Wallet, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, w := range in {
		if _, ok := seen[w.Key()]; ok {
			continue
		}
		seen[w.Key()] = struct{}{}
		out = append(out, w)
	}
	return out
}
