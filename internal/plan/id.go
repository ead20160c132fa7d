// File path: internal/plan/id.go
package plan

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// PlanIDLength is the number of characters in a public plan identifier.
const PlanIDLength = 8

var planIDPattern = regexp.MustCompile(`^[0-9A-F]{8}$`)

// NewID returns a fresh internal identifier.
func NewID() string {
	return uuid.NewString()
}

// NewPlanID returns a short public identifier: the leading eight hex digits
// of a random UUID, upper-cased. Collisions are possible and are handled by
// the store.
func NewPlanID() string {
	return strings.ToUpper(uuid.NewString()[:PlanIDLength])
}

// ValidPlanID reports whether id has the shape produced by NewPlanID.
func ValidPlanID(id string) bool {
	return planIDPattern.MatchString(id)
}
