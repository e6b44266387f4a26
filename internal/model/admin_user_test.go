package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanManage_FullRoleMatrix(t *testing.T) {
	roles := []AdminRole{RoleSuperAdmin, RoleAdmin, RoleViewer}

	// Strict inequality over ranks. Notably super_admin vs super_admin is
	// false: no peer may demote or delete another peer through this path.
	want := map[AdminRole]map[AdminRole]bool{
		RoleSuperAdmin: {RoleSuperAdmin: false, RoleAdmin: true, RoleViewer: true},
		RoleAdmin:      {RoleSuperAdmin: false, RoleAdmin: false, RoleViewer: true},
		RoleViewer:     {RoleSuperAdmin: false, RoleAdmin: false, RoleViewer: false},
	}

	for _, actorRole := range roles {
		for _, targetRole := range roles {
			t.Run(fmt.Sprintf("%s_manages_%s", actorRole, targetRole), func(t *testing.T) {
				actor := &AdminUser{ID: 1, Role: actorRole}
				target := &AdminUser{ID: 2, Role: targetRole}
				assert.Equal(t, want[actorRole][targetRole], CanManage(actor, target))
			})
		}
	}
}

func TestCanManage_NeverSelf(t *testing.T) {
	for _, role := range []AdminRole{RoleSuperAdmin, RoleAdmin, RoleViewer} {
		actor := &AdminUser{ID: 5, Role: role}
		assert.False(t, CanManage(actor, actor), "role %s must not manage itself", role)

		// Same id, even with a mismatched stored role, is still self.
		stale := &AdminUser{ID: 5, Role: RoleViewer}
		assert.False(t, CanManage(actor, stale))
	}
}

func TestCanManage_NilAndUnknownRoles(t *testing.T) {
	super := &AdminUser{ID: 1, Role: RoleSuperAdmin}

	assert.False(t, CanManage(nil, super))
	assert.False(t, CanManage(super, nil))

	// A corrupted role ranks below everything: it manages nobody, and
	// everyone outranks it.
	corrupt := &AdminUser{ID: 2, Role: AdminRole("root")}
	assert.False(t, CanManage(corrupt, super))
	assert.True(t, CanManage(super, corrupt))
}

func TestAdminRole_Rank(t *testing.T) {
	assert.Greater(t, RoleSuperAdmin.Rank(), RoleAdmin.Rank())
	assert.Greater(t, RoleAdmin.Rank(), RoleViewer.Rank())
	assert.Greater(t, RoleViewer.Rank(), AdminRole("").Rank())
}

func TestAdminRole_Assignable(t *testing.T) {
	assert.True(t, RoleAdmin.Assignable())
	assert.True(t, RoleViewer.Assignable())
	// super_admin only ever comes from bootstrap.
	assert.False(t, RoleSuperAdmin.Assignable())
	assert.False(t, AdminRole("owner").Assignable())
}

func TestEnumValidators(t *testing.T) {
	assert.True(t, ValidStatus(PracticeStatusActive))
	assert.False(t, ValidStatus(PracticeStatus("live")))

	assert.True(t, ValidPlan(PlanFreeTrial))
	assert.False(t, ValidPlan(PracticePlan("enterprise")))

	assert.True(t, ValidBookingStatus(BookingStatusPending))
	assert.False(t, ValidBookingStatus(BookingStatus("open")))

	assert.True(t, ValidBookingGoal(GoalMissedCalls))
	assert.False(t, ValidBookingGoal(BookingGoal("curious")))
}
