// src/security/validation/content_scanner.go
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/username/dmtrade/backend/src/logger"
)

// Spreadsheet formula triggers at the start of a string.
var formulaInjectionPrefixRegex = regexp.MustCompile(`^[=+\-@\t\r]`)

func truncateForLog(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// CheckFormulaInjection rejects display names that a spreadsheet would
// evaluate once a portfolio report is exported.
func CheckFormulaInjection(s, fieldName string) error {
	if formulaInjectionPrefixRegex.MatchString(strings.TrimSpace(s)) {
		errMsg := fmt.Sprintf("field '%s' must not start with a formula character", fieldName)
		logger.L.Warn(errMsg, "contentPreview", truncateForLog(s, 50))
		return fmt.Errorf("%w: %s", ErrValidationFailed, errMsg)
	}
	return nil
}
