// Package authz decides whether an actor may perform an action. Decisions
// are pure: they depend only on the actor's role, the action and, where it
// matters, who owns the resource.
package authz

import "github.com/joao-fontenele/marketplace-orderflow/internal/apperr"

type Role string

const (
	RoleClient   Role = "CLIENT"
	RoleMember   Role = "MEMBER"
	RoleManager  Role = "MARKETPLACE_MANAGER"
	RoleApprover Role = "MARKETPLACE_MANAGER_APPROVER"
)

type Capability string

const (
	CapViewListings     Capability = "view_listings"
	CapViewPermissions  Capability = "view_permissions"
	CapReserve          Capability = "reserve"
	CapPurchase         Capability = "purchase"
	CapReadOwnOrders    Capability = "read_own_orders"
	CapManageListings   Capability = "manage_listings"
	CapViewAllListings  Capability = "view_all_listings"
	CapApproveListings  Capability = "approve_listings"
	CapManageOrders     Capability = "manage_orders"
	CapReadAnyOrder     Capability = "read_any_order"
	CapListPaymentTypes Capability = "list_payment_methods"
)

const (
	MessageNoClientID   = "No client ID provided"
	MessageInvalidToken = "Authorization token could not be validated"
)

func capabilities(caps ...Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

var clientCaps = []Capability{CapViewListings, CapViewPermissions, CapListPaymentTypes}

var memberCaps = append(append([]Capability{}, clientCaps...),
	CapReserve, CapPurchase, CapReadOwnOrders)

var managerCaps = append(append([]Capability{}, memberCaps...),
	CapManageListings, CapViewAllListings, CapManageOrders, CapReadAnyOrder)

var roleCapabilities = map[Role]map[Capability]struct{}{
	RoleClient:   capabilities(clientCaps...),
	RoleMember:   capabilities(memberCaps...),
	RoleManager:  capabilities(managerCaps...),
	RoleApprover: capabilities(append(append([]Capability{}, managerCaps...), CapApproveListings)...),
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ClientID string
	UserID   string
	Email    string
	Role     Role
}

func (a Actor) Can(c Capability) bool {
	_, ok := roleCapabilities[a.Role][c]
	return ok
}

// IsAdmin reports whether the actor may see every listing regardless of
// status or reservation.
func (a Actor) IsAdmin() bool {
	return a.Can(CapViewAllListings)
}

type Action int

const (
	ViewListings Action = iota
	CreateListing
	UpdateListing
	ApproveListing
	ReserveListing
	ManageReservation
	Checkout
	ReadOrder
	SearchOrders
	UpdateOrder
	ViewPermissions
	ListPaymentMethods
)

type rule struct {
	requires Capability
	// owned actions are only allowed for the resource owner, unless the
	// actor holds the bypass capability.
	owned  bool
	bypass Capability
}

var rules = map[Action]rule{
	ViewListings:       {requires: CapViewListings},
	CreateListing:      {requires: CapManageListings},
	UpdateListing:      {requires: CapManageListings},
	ApproveListing:     {requires: CapApproveListings},
	ReserveListing:     {requires: CapReserve},
	ManageReservation:  {requires: CapReserve, owned: true},
	Checkout:           {requires: CapPurchase, owned: true},
	ReadOrder:          {requires: CapReadOwnOrders, owned: true, bypass: CapReadAnyOrder},
	SearchOrders:       {requires: CapReadOwnOrders},
	UpdateOrder:        {requires: CapManageOrders},
	ViewPermissions:    {requires: CapViewPermissions},
	ListPaymentMethods: {requires: CapListPaymentTypes},
}

// Resource carries the ownership fact for owned actions. OwnerID is empty
// when nobody owns the resource, for example an expired reservation.
type Resource struct {
	OwnerID string
}

// Authorize returns nil when the actor may perform the action, an
// authentication error when there is no client identity, and a forbidden
// error otherwise.
func Authorize(actor Actor, action Action, res Resource) error {
	if actor.ClientID == "" {
		return apperr.Authentication(MessageNoClientID)
	}

	r, ok := rules[action]
	if !ok || !actor.Can(r.requires) {
		return apperr.ErrForbidden
	}

	if !r.owned {
		return nil
	}
	if r.bypass != "" && actor.Can(r.bypass) {
		return nil
	}
	if res.OwnerID == "" || res.OwnerID != actor.UserID {
		return apperr.ErrForbidden
	}

	return nil
}

// Permissions is the queryable summary of what the actor may do.
type Permissions struct {
	ListingApproval bool `json:"listingApproval"`
}

func PermissionsFor(actor Actor) Permissions {
	return Permissions{ListingApproval: actor.Can(CapApproveListings)}
}
