// Package auth protects handlers with HTTP basic authentication against a
// table of bcrypt password hashes.
package auth

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
	"golang.org/x/crypto/bcrypt"

	"burrow/internal/errors"
)

// DefaultCost is the bcrypt cost used by HashPassword.
const DefaultCost = 12

// dummyHashes caches one throwaway hash per bcrypt cost. Unknown names are
// compared against the one matching the table's cost.
var dummyHashes sync.Map // int -> []byte

func dummyHash(cost int) []byte {
	if h, ok := dummyHashes.Load(cost); ok {
		return h.([]byte)
	}
	h, err := bcrypt.GenerateFromPassword([]byte("burrow-dummy-password"), cost)
	if err != nil {
		h, _ = bcrypt.GenerateFromPassword([]byte("burrow-dummy-password"), DefaultCost)
	}
	actual, _ := dummyHashes.LoadOrStore(cost, h)
	return actual.([]byte)
}

// Users maps user names to bcrypt hashes.
type Users map[string]string

type usersFile struct {
	Users map[string]string `toml:"users"`
}

// LoadUsers reads a TOML file of the form
//
//	[users]
//	alice = "$2a$12$..."
func LoadUsers(path string) (Users, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "read users file", err)
	}
	var f usersFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "parse users file", err)
	}
	users := Users(f.Users)
	if err := users.Validate(); err != nil {
		return nil, err
	}
	dummyHash(users.missCost())
	return users, nil
}

// Validate checks that every entry holds a bcrypt hash.
func (u Users) Validate() error {
	if len(u) == 0 {
		return errors.Newf(errors.ConfigInvalid, "users file defines no users")
	}
	for _, name := range u.Names() {
		if _, err := bcrypt.Cost([]byte(u[name])); err != nil {
			return errors.New(errors.ConfigInvalid, fmt.Sprintf("user %q: not a bcrypt hash", name), err)
		}
	}
	return nil
}

// Names returns the user names, sorted.
func (u Users) Names() []string {
	names := make([]string, 0, len(u))
	for name := range u {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Verify reports whether password is correct for name.
func (u Users) Verify(name, password string) bool {
	hash, ok := u[name]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash(u.missCost()), []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// missCost is the highest cost in the table, DefaultCost when it is empty.
func (u Users) missCost() int {
	cost := 0
	for _, hash := range u {
		if c, err := bcrypt.Cost([]byte(hash)); err == nil && c > cost {
			cost = c
		}
	}
	if cost == 0 {
		return DefaultCost
	}
	return cost
}

// HashPassword creates a bcrypt hash of password. cost 0 means DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
