package mangrove

import "errors"

// The messages below are shown to end users verbatim, hence the sentence
// case.
var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("Invalid login credentials")
	// ErrUserAlreadyRegistered is returned by SignUp for a taken email.
	ErrUserAlreadyRegistered = errors.New("User already registered")
	// ErrEmailNotConfirmed is returned by SignIn before the email is verified.
	ErrEmailNotConfirmed = errors.New("Email not confirmed")
	// ErrLinkInvalid is returned for unknown, used, expired or mismatched
	// verification and recovery links.
	ErrLinkInvalid = errors.New("Email link is invalid or has expired")
	// ErrInvalidEmail is returned when an address is not plausibly an email.
	ErrInvalidEmail = errors.New("Unable to validate email address: invalid format")
	// ErrWeakPassword is matched by every *PasswordPolicyError.
	ErrWeakPassword = errors.New("Password does not meet the requirements")
	// ErrSamePassword is returned when the new password equals the old one.
	ErrSamePassword = errors.New("New password should be different from the old password.")
	// ErrSessionMissing is returned when an operation needs a signed-in session.
	ErrSessionMissing = errors.New("Auth session missing!")
	// ErrSessionExpired is returned for sessions that no longer exist.
	ErrSessionExpired = errors.New("Session expired. Please sign in again.")
	// ErrAccountDisabled is returned by SignIn for disabled accounts.
	ErrAccountDisabled = errors.New("This account has been disabled")
	// ErrRateLimited is returned when a throttle is exhausted.
	ErrRateLimited = errors.New("Too many requests. Please wait a moment and try again.")
	// ErrServiceUnavailable hides Redis, database and mail failures.
	ErrServiceUnavailable = errors.New("Service temporarily unavailable. Please try again later.")
	// ErrEngineNotReady is returned by methods on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("Identity service is not ready")
)

// Errors returned by AccountStore implementations.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

// PasswordPolicyError carries the first password rule that was broken.
type PasswordPolicyError struct {
	Reason string
}

func (e *PasswordPolicyError) Error() string { return e.Reason }

func (e *PasswordPolicyError) Is(target error) bool { return target == ErrWeakPassword }
