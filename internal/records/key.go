package records

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/cryptox"
)

// LogicalKey identifies one protected value, e.g.
// {answers, sessionID, questionID} or {subscriber_emails, subscriberID, "email"}.
// Namespace doubles as the salt purpose.
type LogicalKey struct {
	Namespace string
	Primary   string
	Secondary string
}

// Validate rejects empty parts and parts containing the canonical
// separator, which would make two different keys sign identically.
func (k LogicalKey) Validate() error {
	for name, v := range map[string]string{
		"namespace": k.Namespace,
		"primary":   k.Primary,
		"secondary": k.Secondary,
	} {
		if v == "" {
			return fmt.Errorf("logical key %s is empty: %w", name, common.ErrorValidation)
		}
		if strings.ContainsAny(v, ":/") {
			return fmt.Errorf("logical key %s contains a reserved character: %w", name, common.ErrorValidation)
		}
	}
	return nil
}

// ID is a stable single-string form, used as object name by blob backends.
func (k LogicalKey) ID() string {
	return k.Namespace + "/" + k.Primary + "/" + k.Secondary
}

func (k LogicalKey) String() string { return k.ID() }

// Identity returns the fields bound into the integrity hash.
func (k LogicalKey) Identity() cryptox.Identity {
	return cryptox.Identity{First: k.Primary, Second: k.Secondary}
}

// ParseID is the inverse of LogicalKey.ID.
func ParseID(id string) (LogicalKey, error) {
	parts := strings.Split(id, "/")
	if len(parts) != 3 {
		return LogicalKey{}, fmt.Errorf("malformed record id %q: %w", id, common.ErrorValidation)
	}
	k := LogicalKey{Namespace: parts[0], Primary: parts[1], Secondary: parts[2]}
	return k, k.Validate()
}
