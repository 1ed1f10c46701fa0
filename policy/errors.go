package policy

import "fmt"

// MalformedPolicyError reports a statement that cannot be compiled. It is
// returned when a document is constructed, never during evaluation.
type MalformedPolicyError struct {
	Index  int
	Sid    string
	Reason string
}

func (e *MalformedPolicyError) Error() string {
	if e.Sid != "" {
		return fmt.Sprintf("malformed policy: statement %d (%s): %s", e.Index, e.Sid, e.Reason)
	}
	return fmt.Sprintf("malformed policy: statement %d: %s", e.Index, e.Reason)
}
