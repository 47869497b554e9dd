package jwtx

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-jose/go-jose/v4"
)

var (
	ErrNoKey        = errors.New("jwtx: key not found")
	ErrKIDRequired  = errors.New("jwtx: kid required when several keys are registered")
	ErrDuplicateKID = errors.New("jwtx: duplicate kid")
)

// KeyResolver finds the registered key for an assertion header kid. An empty
// kid resolves only when exactly one key is registered.
type KeyResolver interface {
	ResolveKey(kid string) (Key, error)
}

// KeySet holds the verification keys registered for one client. It's safe
// for concurrent use.
type KeySet struct {
	mu    sync.RWMutex
	order []string
	keys  map[string]Key
}

// NewKeySet returns a KeySet holding keys.
func NewKeySet(keys ...Key) (*KeySet, error) {
	ks := &KeySet{keys: make(map[string]Key, len(keys))}
	for _, k := range keys {
		if err := ks.Add(k); err != nil {
			return nil, err
		}
	}
	return ks, nil
}

// Add registers a key. Kids are unique within a set.
func (k *KeySet) Add(key Key) error {
	if key.KID == "" {
		return fmt.Errorf("%w: empty kid", ErrInvalidJWK)
	}
	if _, err := keyAlg(key.Alg, key.Public); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.keys[key.KID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateKID, key.KID)
	}
	k.keys[key.KID] = key
	k.order = append(k.order, key.KID)
	return nil
}

// ResolveKey implements KeyResolver.
func (k *KeySet) ResolveKey(kid string) (Key, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if kid == "" {
		switch len(k.order) {
		case 0:
			return Key{}, ErrNoKey
		case 1:
			return k.keys[k.order[0]], nil
		default:
			return Key{}, ErrKIDRequired
		}
	}
	key, ok := k.keys[kid]
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrNoKey, kid)
	}
	return key, nil
}

// Len reports how many keys are registered.
func (k *KeySet) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.order)
}

// PublicJWKS returns a snapshot of the set in registration order.
func (k *KeySet) PublicJWKS() jose.JSONWebKeySet {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(k.order))}
	for _, kid := range k.order {
		out.Keys = append(out.Keys, k.keys[kid].JWK())
	}
	return out
}
