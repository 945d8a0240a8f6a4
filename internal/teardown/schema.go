package teardown

const (
	Users           = "public.users"
	Resources       = "public.resources"
	Bookings        = "public.bookings"
	WaitlistEntries = "public.waitlist_entries"
)

// Reservations is the ownership graph of the reservation schema.
func Reservations() *Graph {
	return NewGraph().
		Table(Users, "id").
		Table(Resources, "id").
		Table(Bookings, "id").
		Table(WaitlistEntries, "id").
		// A user owns the resources they published and every request they made.
		Own(Users, Resources, "owner_id").
		Own(Users, WaitlistEntries, "requester_id").
		Own(Users, Bookings, "requester_id").
		Nullify(Users, Bookings, "decision_by").
		// A resource owns its reservations.
		Own(Resources, WaitlistEntries, "resource_id").
		Own(Resources, Bookings, "resource_id").
		// Waitlist audit links survive the booking they produced.
		Nullify(Bookings, WaitlistEntries, "promoted_booking_id")
}
