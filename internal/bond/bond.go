// Package bond tracks which single chat the bot is bonded to.
package bond

import (
	"errors"
	"sync"
)

var (
	// ErrAlreadyBonded is returned when the bonded chat sends /start again.
	ErrAlreadyBonded = errors.New("already bonded with this chat")
	// ErrBondedElsewhere is returned when another chat tries to bond.
	ErrBondedElsewhere = errors.New("bonded with another chat")
)

// State is unbound until the first successful Bond and never unbinds.
type State struct {
	mu     sync.RWMutex
	chatID int64
	bound  bool
}

// New returns an unbound State.
func New() *State { return &State{} }

// Bond binds chatID if nothing is bound yet. Later calls leave the state
// unchanged and report ErrAlreadyBonded or ErrBondedElsewhere.
func (s *State) Bond(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		if s.chatID == chatID {
			return ErrAlreadyBonded
		}
		return ErrBondedElsewhere
	}
	s.chatID = chatID
	s.bound = true
	return nil
}

// ChatID returns the bonded chat, if any.
func (s *State) ChatID() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatID, s.bound
}

// IsBondedTo reports whether chatID is the bonded chat.
func (s *State) IsBondedTo(chatID int64) bool {
	id, ok := s.ChatID()
	return ok && id == chatID
}
