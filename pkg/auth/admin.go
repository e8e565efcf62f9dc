package auth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// OwnerPolicy grants admin rights to a single owner account.
type OwnerPolicy struct {
	Owner common.Address
}

func (p OwnerPolicy) IsAdmin(caller common.Address) bool {
	return caller == p.Owner
}

func (OwnerPolicy) DeniedMessage() string {
	return "Ownable: caller is not the owner"
}

// RolePolicy grants admin rights to every holder of the ADMIN role.
type RolePolicy struct {
	admins map[common.Address]struct{}
}

// NewRolePolicy creates a RolePolicy over admins.
func NewRolePolicy(admins []common.Address) *RolePolicy {
	p := &RolePolicy{admins: make(map[common.Address]struct{}, len(admins))}
	for _, a := range admins {
		p.admins[a] = struct{}{}
	}
	return p
}

func (p *RolePolicy) IsAdmin(caller common.Address) bool {
	_, ok := p.admins[caller]
	return ok
}

func (*RolePolicy) DeniedMessage() string {
	return "Function caller is not an ADMIN"
}

// Admins is implemented by both policies.
type Admins interface {
	IsAdmin(caller common.Address) bool
	DeniedMessage() string
}

// NewAdminPolicy builds the policy for mode ("owner" or "role"). In owner
// mode the first address is the owner.
func NewAdminPolicy(mode string, admins []common.Address) (Admins, error) {
	if len(admins) == 0 {
		return nil, fmt.Errorf("at least one admin is required")
	}
	switch mode {
	case "owner":
		return OwnerPolicy{Owner: admins[0]}, nil
	case "role":
		return NewRolePolicy(admins), nil
	default:
		return nil, fmt.Errorf("unknown admin mode %q", mode)
	}
}
