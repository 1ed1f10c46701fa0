package policy

// Effect is what a statement does to a request it applies to. Values are
// case-sensitive, as in IAM documents.
type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

// IsValid reports whether e is Allow or Deny.
func (e Effect) IsValid() bool {
	return e == EffectAllow || e == EffectDeny
}

// Reasons reported on a Result.
const (
	ReasonExplicitDeny  = "Explicit deny"
	ReasonExplicitAllow = "Explicit allow"
	ReasonImplicitDeny  = "Implicit deny (no matching allow)"
)
