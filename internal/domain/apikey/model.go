package apikey

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Permission is a bitmask of independent capabilities. A single key can hold
// any combination; bits are combined with OR.
type Permission uint32

const (
	PermissionRead   Permission = 1 << 0
	PermissionWrite  Permission = 1 << 1
	PermissionDelete Permission = 1 << 2
	PermissionAdmin  Permission = 1 << 3
)

var permissionNames = map[Permission]string{
	PermissionRead:   "read",
	PermissionWrite:  "write",
	PermissionDelete: "delete",
	PermissionAdmin:  "admin",
}

// Has reports whether the mask contains at least one of the required bits.
func (p Permission) Has(required Permission) bool {
	return p&required != 0
}

func (p Permission) Names() []string {
	names := make([]string, 0, 4)
	for _, bit := range []Permission{PermissionRead, PermissionWrite, PermissionDelete, PermissionAdmin} {
		if p&bit != 0 {
			names = append(names, permissionNames[bit])
		}
	}
	return names
}

func (p Permission) String() string {
	if p == 0 {
		return "none"
	}
	return strings.Join(p.Names(), "|")
}

// ParsePermissions builds a mask from names like "read", "write", "delete", "admin".
func ParsePermissions(names []string) (Permission, error) {
	var mask Permission
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "read":
			mask |= PermissionRead
		case "write":
			mask |= PermissionWrite
		case "delete":
			mask |= PermissionDelete
		case "admin":
			mask |= PermissionAdmin
		case "":
		default:
			return 0, fmt.Errorf("unknown permission %q", name)
		}
	}
	return mask, nil
}

// APIKey is a stored credential record. Raw secrets are never stored, only
// their SHA-256 digest.
type APIKey struct {
	ID          uuid.UUID  `db:"id"`
	AppID       string     `db:"app_id"`
	KeyHash     string     `db:"key_hash"`
	Prefix      string     `db:"prefix"`
	Permissions Permission `db:"permissions"`
	IsActive    bool       `db:"is_active"`
	CreatedAt   time.Time  `db:"created_at"`
	LastUsedAt  *time.Time `db:"last_used_at"`
}

const (
	APIKeyPrefixLength = 8
	APIKeySecretLength = 32
	APIKeyFormat       = "iv_%s_%s"
)
