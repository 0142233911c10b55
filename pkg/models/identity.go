package models

// PermissionLevel orders caller privileges. Higher values include lower ones.
type PermissionLevel int

const (
	PermissionViewer PermissionLevel = iota
	PermissionMember
	PermissionManager
	PermissionAdmin
)

var permissionNames = map[string]PermissionLevel{
	"viewer":  PermissionViewer,
	"member":  PermissionMember,
	"manager": PermissionManager,
	"admin":   PermissionAdmin,
}

// ParsePermissionLevel maps a level name to its value.
func ParsePermissionLevel(name string) (PermissionLevel, bool) {
	level, ok := permissionNames[name]

	return level, ok
}

func (p PermissionLevel) String() string {
	for name, level := range permissionNames {
		if level == p {
			return name
		}
	}

	return "unknown"
}

// Identity is a user known to the external directory.
type Identity struct {
	ID              string          `json:"id"               yaml:"id"`
	OrganizationID  string          `json:"organization_id"  yaml:"organization_id"`
	Name            string          `json:"name"             yaml:"name"`
	Role            string          `json:"role,omitempty"   yaml:"role"`
	Department      string          `json:"department,omitempty" yaml:"department"`
	PermissionLevel PermissionLevel `json:"permission_level" yaml:"-"`
	IsActive        bool            `json:"is_active"        yaml:"is_active"`
}

// Owner returns the dashboard scope of this identity.
func (i *Identity) Owner() Owner {
	return Owner{UserID: i.ID, OrganizationID: i.OrganizationID}
}
