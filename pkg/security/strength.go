// Package security provides passphrase strength evaluation and repository
// health analysis: weak passwords, reused passwords, stale credentials, and
// template field coverage.
package security

import (
	"strings"

	"github.com/memvault/memvault/pkg/model"
)

// PasswordStrength represents the strength level of a password or secret.
type PasswordStrength int

const (
	// PasswordWeak indicates an insecure password.
	PasswordWeak PasswordStrength = iota
	// PasswordFair indicates a minimally acceptable password.
	PasswordFair
	// PasswordGood indicates a good password.
	PasswordGood
	// PasswordStrong indicates a strong password.
	PasswordStrong
)

// String returns a human-readable representation of the strength level.
func (s PasswordStrength) String() string {
	switch s {
	case PasswordWeak:
		return "Weak"
	case PasswordFair:
		return "Fair"
	case PasswordGood:
		return "Good"
	case PasswordStrong:
		return "Strong"
	default:
		return "Unknown"
	}
}

// Points returns the score points for this strength level, used in the
// health report's strength component: Weak=0, Fair=8, Good=17, Strong=25.
func (s PasswordStrength) Points() int {
	switch s {
	case PasswordFair:
		return 8
	case PasswordGood:
		return 17
	case PasswordStrong:
		return 25
	default:
		return 0
	}
}

// FieldStrength evaluates a secret value according to its field type.
// TOTP secrets and machine-generated keys are judged by entropy length,
// human-chosen passwords by the NIST length-first approach.
func FieldStrength(value string, ft model.FieldType) PasswordStrength {
	if ft == model.FieldTypeTOTPSecret {
		return tokenStrength(value)
	}
	return passwordStrength(value)
}

// EvaluatePassphrase rates a master passphrase. The repository manager
// refuses to create an archive behind a Weak passphrase unless explicitly
// overridden.
func EvaluatePassphrase(passphrase string) PasswordStrength {
	return passwordStrength(passphrase)
}

// passwordStrength evaluates human-created passwords. Length is the primary
// factor per NIST SP 800-63B; composition rules are not enforced.
func passwordStrength(value string) PasswordStrength {
	switch length := len(value); {
	case length >= 20:
		return PasswordStrong
	case length >= 14:
		return PasswordGood
	case length >= 8:
		return PasswordFair
	default:
		return PasswordWeak
	}
}

// tokenStrength evaluates machine-generated secrets, where length directly
// correlates with entropy: 32+ chars of random alphanumeric is ~128 bits.
func tokenStrength(value string) PasswordStrength {
	switch length := len(value); {
	case length >= 32:
		return PasswordStrong
	case length >= 20:
		return PasswordGood
	case length >= 16:
		return PasswordFair
	default:
		return PasswordWeak
	}
}

// passwordNames are field names treated as password-bearing regardless of
// their declared type.
var passwordNames = []string{
	"password", "pwd", "pass", "passwd", "secret", "credential",
}

// IsPasswordField reports whether a named field should be strength-checked.
func IsPasswordField(name string, f model.Field) bool {
	// CVVs are short by definition and excluded from strength checks.
	switch f.Type {
	case model.FieldTypePassword, model.FieldTypeTOTPSecret:
		return true
	}
	lower := strings.ToLower(name)
	for _, n := range passwordNames {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
