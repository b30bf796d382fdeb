package git

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidateBranchName checks a user-provided branch name against git's
// ref naming rules. Returns nil if valid.
func ValidateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if name == "@" {
		return fmt.Errorf("branch name cannot be '@'")
	}

	for _, prefix := range []string{".", "/", "-"} {
		if strings.HasPrefix(name, prefix) {
			return fmt.Errorf("branch name cannot start with '%s'", prefix)
		}
	}
	for _, suffix := range []string{".lock", ".", "/", "-"} {
		if strings.HasSuffix(name, suffix) {
			return fmt.Errorf("branch name cannot end with '%s'", suffix)
		}
	}
	for _, seq := range []string{"..", "//", "@{"} {
		if strings.Contains(name, seq) {
			return fmt.Errorf("branch name cannot contain '%s'", seq)
		}
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("branch name cannot contain control characters")
		}
		if strings.ContainsRune("~^:?*[]\\ #@{}", r) {
			return fmt.Errorf("branch name cannot contain '%c'", r)
		}
	}

	return nil
}
