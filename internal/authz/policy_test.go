package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joao-fontenele/marketplace-orderflow/internal/apperr"
)

var (
	client   = Actor{ClientID: "web", Role: RoleClient}
	memberA  = Actor{ClientID: "web", UserID: "member-a", Role: RoleMember}
	memberB  = Actor{ClientID: "web", UserID: "member-b", Role: RoleMember}
	manager  = Actor{ClientID: "web", UserID: "manager", Role: RoleManager}
	approver = Actor{ClientID: "web", UserID: "approver", Role: RoleApprover}
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		actor   Actor
		action  Action
		res     Resource
		wantErr *apperr.Error
	}{
		{"missing client id", Actor{UserID: "x", Role: RoleMember}, ViewListings, Resource{}, apperr.ErrAuthentication},
		{"client views listings", client, ViewListings, Resource{}, nil},
		{"client cannot reserve", client, ReserveListing, Resource{}, apperr.ErrForbidden},
		{"member reserves", memberA, ReserveListing, Resource{}, nil},
		{"member cannot create listing", memberA, CreateListing, Resource{}, apperr.ErrForbidden},
		{"manager creates listing", manager, CreateListing, Resource{}, nil},
		{"manager cannot approve", manager, ApproveListing, Resource{}, apperr.ErrForbidden},
		{"approver approves", approver, ApproveListing, Resource{}, nil},
		{"holder manages reservation", memberA, ManageReservation, Resource{OwnerID: "member-a"}, nil},
		{"other buyer cannot manage reservation", memberB, ManageReservation, Resource{OwnerID: "member-a"}, apperr.ErrForbidden},
		{"nobody holds reservation", memberA, ManageReservation, Resource{}, apperr.ErrForbidden},
		{"manager cannot manage someone else's reservation", manager, ManageReservation, Resource{OwnerID: "member-a"}, apperr.ErrForbidden},
		{"buyer checks out own reservation", memberA, Checkout, Resource{OwnerID: "member-a"}, nil},
		{"buyer reads own order", memberA, ReadOrder, Resource{OwnerID: "member-a"}, nil},
		{"other buyer cannot read order", memberB, ReadOrder, Resource{OwnerID: "member-a"}, apperr.ErrForbidden},
		{"manager reads any order", manager, ReadOrder, Resource{OwnerID: "member-a"}, nil},
		{"member cannot update order", memberA, UpdateOrder, Resource{}, apperr.ErrForbidden},
		{"manager updates order", manager, UpdateOrder, Resource{}, nil},
		{"client reads permissions", client, ViewPermissions, Resource{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.action, tt.res)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthorizeMissingClientMessage(t *testing.T) {
	err := Authorize(Actor{}, ViewPermissions, Resource{})
	assert.Equal(t, MessageNoClientID, apperr.Message(err))
}

func TestPermissionsFor(t *testing.T) {
	assert.Equal(t, Permissions{ListingApproval: true}, PermissionsFor(approver))
	assert.Equal(t, Permissions{ListingApproval: false}, PermissionsFor(manager))
	assert.Equal(t, Permissions{ListingApproval: false}, PermissionsFor(memberA))
}

func TestRoleCapabilitiesAreExplicit(t *testing.T) {
	assert.True(t, approver.Can(CapManageListings))
	assert.True(t, approver.Can(CapApproveListings))
	assert.False(t, manager.Can(CapApproveListings))
	assert.True(t, manager.IsAdmin())
	assert.False(t, memberA.IsAdmin())
	assert.False(t, Actor{Role: "UNKNOWN"}.Can(CapViewListings))
}

func TestActorContext(t *testing.T) {
	ctx := WithActor(context.Background(), memberA)
	assert.Equal(t, memberA, ActorFrom(ctx))
	assert.Equal(t, Actor{}, ActorFrom(context.Background()))
}
