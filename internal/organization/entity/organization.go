package entity

import "errors"

// Role is the access level of an organization member.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

var ErrInvalidRole = errors.New("role must be one of admin, member, viewer")

// ParseRole validates s as a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleMember, RoleViewer:
		return r, nil
	}
	return "", ErrInvalidRole
}

// Profile is the organization owned by one account, keyed by owner uid.
type Profile struct {
	ID        string `json:"-"`
	OwnerUID  string `json:"ownerUid"`
	Name      string `json:"displayName"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Member is one access grant. Grants are append only.
type Member struct {
	ID        string `json:"-"`
	OwnerUID  string `json:"ownerId"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	GrantedBy string `json:"grantedBy"`
	GrantedAt string `json:"grantedAt"`
}
