package port

// BreachChecker performs a best-effort lookup of a password against a
// breach corpus. The check never feeds back into the caller's control
// flow; failures are swallowed by the implementation.
type BreachChecker interface {
	CheckInBackground(password string)
}
