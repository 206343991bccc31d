package entity

// Reason explains why a verification attempt did not succeed.
type Reason int16

const (
	// ReasonUnknown is mean the reason is not known / not set.
	ReasonUnknown Reason = 0

	// ReasonMissingInput mean the request lacked an identity or a well-formed code.
	ReasonMissingInput Reason = 1

	// ReasonBadToken mean the supplied identity token failed verification.
	ReasonBadToken Reason = 2

	// ReasonNotFound mean no active code exists for the identity.
	ReasonNotFound Reason = 3

	// ReasonExpired mean the code exists but is past its expiry.
	ReasonExpired Reason = 4

	// ReasonMismatch mean the supplied code does not match the issued one.
	ReasonMismatch Reason = 5
)

func (r Reason) String() string {
	switch r {
	case ReasonMissingInput:
		return "missing_input"
	case ReasonBadToken:
		return "bad_token"
	case ReasonNotFound:
		return "not_found"
	case ReasonExpired:
		return "expired"
	case ReasonMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}
