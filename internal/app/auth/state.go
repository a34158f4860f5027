package auth

// State represents the authentication state.
type State int

const (
	StateNoToken         State = iota // Nothing obtained yet
	StateHaveStoredToken              // Holding the token loaded from storage
	StateHaveFreshToken               // Holding a token issued by a credential login
	StateAuthenticated                // A client was built with the held token
	StateFailed                       // Authentication gave up
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateNoToken:
		return "no_token"
	case StateHaveStoredToken:
		return "have_stored_token"
	case StateHaveFreshToken:
		return "have_fresh_token"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// transitions lists the allowed moves. A fresh token never leads back to a login,
// which bounds re-authentication to a single cycle.
var transitions = map[State][]State{
	StateNoToken:         {StateHaveStoredToken, StateHaveFreshToken, StateFailed},
	StateHaveStoredToken: {StateAuthenticated, StateHaveFreshToken, StateFailed},
	StateHaveFreshToken:  {StateAuthenticated, StateFailed},
	StateAuthenticated:   {},
	StateFailed:          {},
}

// canTransition reports whether from -> to is an allowed move.
func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
