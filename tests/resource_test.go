package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingHttp "github.com/nekogravitycat/reservation-engine/internal/booking/http"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/response"
	resHttp "github.com/nekogravitycat/reservation-engine/internal/resource/http"
)

func TestResourceCRUD(t *testing.T) {
	a := newTestApp(t)

	// ==== Setup Users & Tokens ====
	_, adminToken := a.createTestUser(t, "sysadmin@res.com", true)
	owner, ownerToken := a.createTestUser(t, "owner@res.com", false)
	_, otherToken := a.createTestUser(t, "other@res.com", false)
	delegate, _ := a.createTestUser(t, "delegate@res.com", false)

	var resourceID string

	t.Run("Create Resource: Validation", func(t *testing.T) {
		w := a.executeRequest("POST", "/v1/resources", map[string]any{"name": "No Capacity"}, ownerToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = a.executeRequest("POST", "/v1/resources", map[string]any{
			"name": "Bad Zone", "capacity": 4, "time_zone": "Mars/Olympus",
		}, ownerToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = a.executeRequest("POST", "/v1/resources", map[string]any{
			"name": "Bad Window", "capacity": 4,
			"availability_schedule": map[string]any{
				"monday": []map[string]string{{"start": "12:00", "end": "09:00"}},
			},
		}, ownerToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Create Resource: Owner Override Is Admin Only", func(t *testing.T) {
		w := a.executeRequest("POST", "/v1/resources", map[string]any{
			"name": "Hijack", "capacity": 2, "owner_id": delegate.ID,
		}, otherToken)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = a.executeRequest("POST", "/v1/resources", map[string]any{
			"name": "Delegated", "capacity": 2, "owner_id": delegate.ID,
		}, adminToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, delegate.ID, decode[resHttp.ResourceResponse](t, w).OwnerID)
	})

	t.Run("Create Resource: Success", func(t *testing.T) {
		w := a.executeRequest("POST", "/v1/resources", map[string]any{
			"name":          "Lab Bench",
			"description":   "Wet lab, second floor",
			"capacity":      3,
			"is_restricted": true,
			"time_zone":     "Asia/Taipei",
		}, ownerToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		res := decode[resHttp.ResourceResponse](t, w)
		assert.Equal(t, owner.ID, res.OwnerID)
		assert.Equal(t, "Asia/Taipei", res.TimeZone)
		assert.True(t, res.IsRestricted)
		assert.Nil(t, res.Schedule)
		resourceID = res.ID
	})

	t.Run("Get Resource", func(t *testing.T) {
		w := a.executeRequest("GET", "/v1/resources/"+resourceID, nil, otherToken)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Lab Bench", decode[resHttp.ResourceResponse](t, w).Name)

		w = a.executeRequest("GET", "/v1/resources/00000000-0000-0000-0000-000000000000", nil, otherToken)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = a.executeRequest("GET", "/v1/resources/not-a-uuid", nil, otherToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("List Resources", func(t *testing.T) {
		w := a.executeRequest("GET", "/v1/resources?owner_id="+owner.ID, nil, otherToken)
		require.Equal(t, http.StatusOK, w.Code)
		page := decode[response.PageResponse[resHttp.ResourceResponse]](t, w)
		assert.Equal(t, 1, page.Total)
		assert.Equal(t, 1, page.Page)

		w = a.executeRequest("GET", "/v1/resources?sort_by=color", nil, otherToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Update Resource: Stranger Is Denied", func(t *testing.T) {
		w := a.executeRequest("PATCH", "/v1/resources/"+resourceID, map[string]any{"name": "Mine"}, otherToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Update Resource: Owner Sets Schedule", func(t *testing.T) {
		w := a.executeRequest("PATCH", "/v1/resources/"+resourceID, map[string]any{
			"capacity":              5,
			"availability_schedule": weekdaySchedule,
		}, ownerToken)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		res := decode[resHttp.ResourceResponse](t, w)
		assert.Equal(t, 5, res.Capacity)
		assert.Equal(t, "Lab Bench", res.Name)
		require.NotNil(t, res.Schedule)

		w = a.executeRequest("GET", "/v1/resources/"+resourceID, nil, ownerToken)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 5, decode[resHttp.ResourceResponse](t, w).Capacity)
	})

	t.Run("Update Resource: Admin Clears Schedule", func(t *testing.T) {
		w := a.executeRequest("PATCH", "/v1/resources/"+resourceID, map[string]any{"clear_schedule": true}, adminToken)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, decode[resHttp.ResourceResponse](t, w).Schedule)
	})

	t.Run("Delete Resource: Stranger Is Denied", func(t *testing.T) {
		w := a.executeRequest("DELETE", "/v1/resources/"+resourceID, nil, otherToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Delete Resource: Removes Its Bookings", func(t *testing.T) {
		w := a.executeRequest("POST", "/v1/bookings", bookingHttp.CreateBookingRequest{
			ResourceID: resourceID,
			StartTime:  at(monday, 9, 0),
			EndTime:    at(monday, 10, 0),
		}, otherToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		bookingID := decode[bookingHttp.BookingResponse](t, w).ID

		w = a.executeRequest("DELETE", "/v1/resources/"+resourceID, nil, ownerToken)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = a.executeRequest("GET", "/v1/resources/"+resourceID, nil, ownerToken)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = a.executeRequest("GET", "/v1/bookings/"+bookingID, nil, otherToken)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = a.executeRequest("DELETE", "/v1/resources/"+resourceID, nil, ownerToken)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestResourceAvailability(t *testing.T) {
	a := newTestApp(t)
	_, ownerToken := a.createTestUser(t, "owner@avail.com", false)
	_, bookerToken := a.createTestUser(t, "booker@avail.com", false)

	w := a.executeRequest("POST", "/v1/resources", map[string]any{
		"name":                  "Court 1",
		"capacity":              4,
		"availability_schedule": weekdaySchedule,
	}, ownerToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resourceID := decode[resHttp.ResourceResponse](t, w).ID

	w = a.executeRequest("POST", "/v1/bookings", bookingHttp.CreateBookingRequest{
		ResourceID: resourceID,
		StartTime:  at(monday, 10, 0),
		EndTime:    at(monday, 12, 0),
	}, bookerToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	t.Run("Weekday", func(t *testing.T) {
		w := a.executeRequest("GET", "/v1/resources/"+resourceID+"/availability?date=2030-01-07", nil, bookerToken)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode[resHttp.AvailabilityResponse](t, w)
		assert.Equal(t, "2030-01-07", body.Date)
		assert.Equal(t, "UTC", body.TimeZone)
		require.Len(t, body.Open, 1)
		require.Len(t, body.Busy, 1)
		require.Len(t, body.Free, 2)
		assert.True(t, body.Free[0].StartTime.Equal(at(monday, 8, 0)))
		assert.True(t, body.Free[0].EndTime.Equal(at(monday, 10, 0)))
		assert.True(t, body.Free[1].StartTime.Equal(at(monday, 12, 0)))
		assert.True(t, body.Free[1].EndTime.Equal(at(monday, 22, 0)))
	})

	t.Run("Closed Weekend", func(t *testing.T) {
		w := a.executeRequest("GET", "/v1/resources/"+resourceID+"/availability?date=2030-01-12", nil, bookerToken)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode[resHttp.AvailabilityResponse](t, w)
		assert.Empty(t, body.Open)
		assert.Empty(t, body.Free)
	})

	t.Run("Bad Date", func(t *testing.T) {
		w := a.executeRequest("GET", "/v1/resources/"+resourceID+"/availability?date=07-01-2030", nil, bookerToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
