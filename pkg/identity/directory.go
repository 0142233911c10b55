// Package identity is the boundary to the external user directory: who a caller
// is, and which members hold a role or belong to a department.
package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/agencyflow/pkg/models"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownUser indicates the directory has no active user with the given id.
	ErrUnknownUser = errors.New("unknown user")
)

// Directory looks up identities. Member lists are ordered by id ascending and
// only contain active users.
type Directory interface {
	UserByID(ctx context.Context, id string) (*models.Identity, error)
	MembersWithRole(ctx context.Context, organizationID, role string) ([]*models.Identity, error)
	MembersInDepartment(ctx context.Context, organizationID, department string) ([]*models.Identity, error)
	Members(ctx context.Context, organizationID string) ([]*models.Identity, error)
}

// StaticDirectory is an in-memory Directory, typically loaded from YAML.
type StaticDirectory struct {
	mu    sync.RWMutex
	users map[string]*models.Identity
}

func NewStaticDirectory(users ...*models.Identity) *StaticDirectory {
	directory := &StaticDirectory{users: make(map[string]*models.Identity, len(users))}
	for _, user := range users {
		directory.users[user.ID] = user
	}

	return directory
}

type yamlUser struct {
	models.Identity `yaml:",inline"`
	Permission      string `yaml:"permission"`
}

type yamlDirectory struct {
	Users []yamlUser `yaml:"users"`
}

// LoadFile reads a YAML document of the form:
//
//	users:
//	  - id: alice
//	    organization_id: org-1
//	    name: Alice
//	    role: designer
//	    department: creative
//	    permission: manager
//	    is_active: true
func LoadFile(path string) (*StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*StaticDirectory, error) {
	var document yamlDirectory
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to parse directory: %w", err)
	}

	users := make([]*models.Identity, 0, len(document.Users))

	for i, entry := range document.Users {
		if entry.ID == "" {
			return nil, fmt.Errorf("directory entry %d has no id", i)
		}

		user := entry.Identity

		if entry.Permission != "" {
			level, ok := models.ParsePermissionLevel(strings.ToLower(entry.Permission))
			if !ok {
				return nil, fmt.Errorf("directory entry %s: unknown permission %q", entry.ID, entry.Permission)
			}

			user.PermissionLevel = level
		}

		users = append(users, &user)
	}

	return NewStaticDirectory(users...), nil
}

// Put adds or replaces a user.
func (d *StaticDirectory) Put(user *models.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.users[user.ID] = user
}

func (d *StaticDirectory) UserByID(_ context.Context, id string) (*models.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[id]
	if !ok || !user.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, id)
	}

	clone := *user

	return &clone, nil
}

func (d *StaticDirectory) MembersWithRole(_ context.Context, organizationID, role string) ([]*models.Identity, error) {
	return d.members(organizationID, func(user *models.Identity) bool {
		return strings.EqualFold(user.Role, role)
	}), nil
}

func (d *StaticDirectory) MembersInDepartment(_ context.Context, organizationID, department string) ([]*models.Identity, error) {
	return d.members(organizationID, func(user *models.Identity) bool {
		return strings.EqualFold(user.Department, department)
	}), nil
}

func (d *StaticDirectory) Members(_ context.Context, organizationID string) ([]*models.Identity, error) {
	return d.members(organizationID, func(*models.Identity) bool { return true }), nil
}

func (d *StaticDirectory) members(organizationID string, match func(*models.Identity) bool) []*models.Identity {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members := make([]*models.Identity, 0)

	for _, user := range d.users {
		if user.IsActive && user.OrganizationID == organizationID && match(user) {
			clone := *user
			members = append(members, &clone)
		}
	}

	slices.SortFunc(members, func(a, b *models.Identity) int {
		return strings.Compare(a.ID, b.ID)
	})

	return members
}

func IsUnknownUser(err error) bool {
	return errors.Is(err, ErrUnknownUser)
}
