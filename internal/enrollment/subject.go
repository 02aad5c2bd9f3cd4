package enrollment

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeSubjectID trims surrounding whitespace and converts the ID to Unicode NFC,
// so that visually identical IDs typed on different systems map to the same subject.
func NormalizeSubjectID(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}
