// Package directory holds the set of known actors, partitioned by role.
package directory

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"disposisi/internal/auth/models"
	"disposisi/pkg/domain"
	dErrors "disposisi/pkg/domain-errors"
	"disposisi/pkg/platform/sentinel"
)

// Directory is an immutable-membership, read-mostly actor registry.
// Only password hashes may change after construction.
type Directory struct {
	mu         sync.RWMutex
	users      []*models.User
	byUsername map[string]*models.User
	byName     map[string]*models.User
}

type file struct {
	Users []*models.User `yaml:"users"`
}

// New validates users and builds a directory. Usernames are matched
// case-insensitively; names are unique and case-sensitive.
func New(users []*models.User) (*Directory, error) {
	d := &Directory{
		byUsername: make(map[string]*models.User, len(users)),
		byName:     make(map[string]*models.User, len(users)),
	}
	for _, u := range users {
		if u == nil {
			continue
		}
		cp := *u
		cp.ID = strings.TrimSpace(cp.ID)
		cp.Username = strings.TrimSpace(cp.Username)
		cp.Name = strings.TrimSpace(cp.Name)
		if cp.ID == "" || cp.Username == "" || cp.Name == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "directory user requires id, username and name")
		}
		role, err := domain.ParseRole(string(cp.Role))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("user %q has invalid role", cp.Username))
		}
		cp.Role = role

		key := strings.ToLower(cp.Username)
		if _, dup := d.byUsername[key]; dup {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("duplicate username %q", cp.Username))
		}
		if _, dup := d.byName[cp.Name]; dup {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("duplicate name %q", cp.Name))
		}
		d.users = append(d.users, &cp)
		d.byUsername[key] = &cp
		d.byName[cp.Name] = &cp
	}
	return d, nil
}

// Load reads a YAML directory of the form `users: [{id, username, name, role, password_hash}]`.
func Load(r io.Reader) (*Directory, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid directory file")
	}
	return New(f.Users)
}

// LoadFile is Load on a path.
func LoadFile(path string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory file: %w", err)
	}
	return Load(bytes.NewReader(raw))
}

// ByRole returns users holding role in directory order.
func (d *Directory) ByRole(role domain.Role) []*models.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*models.User
	for _, u := range d.users {
		if u.Role == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out
}

// All returns every user in directory order.
func (d *Directory) All() []*models.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*models.User, 0, len(d.users))
	for _, u := range d.users {
		cp := *u
		out = append(out, &cp)
	}
	return out
}

func (d *Directory) FindByUsername(username string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *Directory) FindByName(name string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byName[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// IsKnown reports whether name belongs to a user holding role.
func (d *Directory) IsKnown(role domain.Role, name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byName[name]
	return ok && u.Role == role
}

// SetPasswordHash replaces a user's credential.
func (d *Directory) SetPasswordHash(username, hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

// ProvisionMissing gives every user without a credential the hash produced by
// hashFn. It returns the number of users provisioned.
func (d *Directory) ProvisionMissing(hashFn func() (string, error)) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, u := range d.users {
		if u.PasswordHash != "" {
			continue
		}
		hash, err := hashFn()
		if err != nil {
			return n, err
		}
		u.PasswordHash = hash
		n++
	}
	return n, nil
}
