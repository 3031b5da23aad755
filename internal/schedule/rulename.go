package schedule

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/Collaborne/custom-cloudformation-resources/internal/cfn"
)

// maxRuleNameLength is the EventBridge limit on rule names.
const maxRuleNameLength = 64

// RuleName derives the schedule rule name for a request: stack name plus
// logical resource id plus a short checksum of the request id. The checksum
// keeps the name unique per request while the whole name stays within the
// EventBridge length and charset limits, and the derivation is deterministic
// so retries of the same request reuse the same rule.
func RuleName(req *cfn.Request) string {
	sum := fnv.New32a()
	sum.Write([]byte(req.RequestID))
	suffix := fmt.Sprintf("%08x", sum.Sum32())

	base := sanitizeRuleName(stackName(req.StackID) + "-" + req.LogicalResourceID)
	if max := maxRuleNameLength - len(suffix) - 1; len(base) > max {
		base = base[:max]
	}
	return base + "-" + suffix
}

// stackName extracts the stack name from a stack id of the form
// arn:aws:cloudformation:region:account:stack/NAME/uuid. Anything else is
// used verbatim.
func stackName(stackID string) string {
	parts := strings.Split(stackID, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return stackID
}

func sanitizeRuleName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// nextWholeMinute rounds t up to the following whole minute, so a trigger
// armed for it is never already in the past.
func nextWholeMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute).Add(time.Minute)
}

// cronAt renders a one-shot cron expression firing at t (UTC).
func cronAt(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("cron(%d %d %d %d ? %d)",
		t.Minute(), t.Hour(), t.Day(), int(t.Month()), t.Year())
}
