package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingHttp "github.com/nekogravitycat/reservation-engine/internal/booking/http"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/response"
	resHttp "github.com/nekogravitycat/reservation-engine/internal/resource/http"
	userHttp "github.com/nekogravitycat/reservation-engine/internal/user/http"
)

func TestUserEndpoints(t *testing.T) {
	a := newTestApp(t)

	// ==== Setup Users & Tokens ====
	_, adminToken := a.createTestUser(t, "sysadmin@user.com", true)
	member, memberToken := a.createTestUser(t, "member@user.com", false)

	var createdID string

	t.Run("Me", func(t *testing.T) {
		w := a.executeRequest("GET", "/v1/users/me", nil, memberToken)
		require.Equal(t, http.StatusOK, w.Code)
		me := decode[userHttp.MeResponse](t, w)
		assert.Equal(t, member.ID, me.User.ID)
		assert.Equal(t, "member@user.com", me.User.Email)
		assert.False(t, me.User.IsSystemAdmin)
	})

	t.Run("Me: Invalid Token", func(t *testing.T) {
		w := a.executeRequest("GET", "/v1/users/me", nil, "garbage")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Admin Routes: Member Is Forbidden", func(t *testing.T) {
		w := a.executeRequest("GET", "/v1/users", nil, memberToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Create User", func(t *testing.T) {
		w := a.executeRequest("POST", "/v1/users", map[string]any{"email": "new@user.com"}, adminToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		created := decode[userHttp.MeResponse](t, w)
		assert.True(t, created.User.IsActive)
		createdID = created.User.ID

		w = a.executeRequest("POST", "/v1/users", map[string]any{"email": "new@user.com"}, adminToken)
		assert.Equal(t, http.StatusConflict, w.Code)

		w = a.executeRequest("POST", "/v1/users", map[string]any{"email": "not-an-email"}, adminToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("List Users", func(t *testing.T) {
		w := a.executeRequest("GET", "/v1/users?page=1&page_size=2", nil, adminToken)
		require.Equal(t, http.StatusOK, w.Code)
		page := decode[response.PageResponse[userHttp.UserResponse]](t, w)
		assert.Equal(t, 3, page.Total)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, 2, page.PageSize)
		assert.Equal(t, 2, page.TotalPages)

		w = a.executeRequest("GET", "/v1/users?page_size=1000", nil, adminToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Deactivated User Is Locked Out", func(t *testing.T) {
		w := a.executeRequest("PATCH", "/v1/users/"+member.ID, map[string]any{"is_active": false}, adminToken)
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, decode[userHttp.MeResponse](t, w).User.IsActive)

		w = a.executeRequest("GET", "/v1/users/me", nil, memberToken)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = a.executeRequest("PATCH", "/v1/users/"+member.ID, map[string]any{"is_active": true}, adminToken)
		require.Equal(t, http.StatusOK, w.Code)

		w = a.executeRequest("GET", "/v1/users/me", nil, memberToken)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Delete User", func(t *testing.T) {
		w := a.executeRequest("DELETE", "/v1/users/"+createdID, nil, adminToken)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = a.executeRequest("GET", "/v1/users/"+createdID, nil, adminToken)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = a.executeRequest("DELETE", "/v1/users/"+createdID, nil, adminToken)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDeleteUserCascades(t *testing.T) {
	a := newTestApp(t)
	_, adminToken := a.createTestUser(t, "sysadmin@cascade.com", true)
	owner, ownerToken := a.createTestUser(t, "owner@cascade.com", false)
	_, bookerToken := a.createTestUser(t, "booker@cascade.com", false)

	w := a.executeRequest("POST", "/v1/resources", map[string]any{"name": "Hall", "capacity": 50}, ownerToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resourceID := decode[resHttp.ResourceResponse](t, w).ID

	w = a.executeRequest("POST", "/v1/bookings", bookingHttp.CreateBookingRequest{
		ResourceID: resourceID,
		StartTime:  at(monday, 9, 0),
		EndTime:    at(monday, 11, 0),
	}, bookerToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.executeRequest("DELETE", "/v1/users/"+owner.ID, nil, adminToken)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = a.executeRequest("GET", "/v1/resources/"+resourceID, nil, bookerToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.executeRequest("GET", "/v1/bookings", nil, bookerToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[response.PageResponse[bookingHttp.BookingResponse]](t, w).Total)

	// The deleted owner's token no longer resolves.
	w = a.executeRequest("GET", "/v1/users/me", nil, ownerToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
