package application

import (
	"fmt"
	"regexp"
)

// AnonymizedName replaces a redacted contact's name.
const AnonymizedName = "Redacted Customer"

var (
	intlPhonePattern = regexp.MustCompile(`^\+([1-9]\d{0,2})`)
	bareCCPattern    = regexp.MustCompile(`^([1-9]\d{0,2})`)

	// Shapes the verifier accepts after a full redaction.
	anonymizedPhoneShape = regexp.MustCompile(`^(\+[1-9]\d{0,2}555\d{7,}|REDACTED-\d{8,})$`)
)

// AnonymizedEmail derives the synthetic address for a contact id.
func AnonymizedEmail(contactID int64) string {
	return fmt.Sprintf("redacted-customer-%d@redacted.local", contactID)
}

// AnonymizedPhone derives a synthetic phone number that is unique per
// contact id and reproducible across runs. International shape is kept
// where the original had one: a leading country code survives, the
// subscriber part becomes 555 plus the zero-padded contact id. Inputs
// with no recognizable country code fall back to an unmistakably
// synthetic marker.
func AnonymizedPhone(contactID int64, original string) string {
	if m := intlPhonePattern.FindStringSubmatch(original); m != nil {
		return fmt.Sprintf("+%s555%07d", m[1], contactID)
	}
	// A bare number long enough to plausibly carry a country code is
	// normalized to the international form.
	if len(original) > 7 {
		if m := bareCCPattern.FindStringSubmatch(original); m != nil {
			return fmt.Sprintf("+%s555%07d", m[1], contactID)
		}
	}
	return fmt.Sprintf("REDACTED-%08d", contactID)
}

// anonymizedPhoneValid reports whether a stored phone matches one of
// the expected post-redaction shapes.
func anonymizedPhoneValid(phone string) bool {
	return anonymizedPhoneShape.MatchString(phone)
}
