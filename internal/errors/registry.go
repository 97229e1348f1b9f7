package errors

import "slices"

// Registered error codes.
const (
	CodeInvalidWrapTarget       = "E001"
	CodeOutOfRangeMutation      = "E002"
	CodeInconsistentDeltaUsage  = "E003"
	CodeDisposedNodeReentry     = "E004"
	CodeObserverCallbackFailure = "E005"
	CodeCascadeBudgetExceeded   = "E006"
	CodeInvalidKey              = "E007"
	CodeNotCallable             = "E008"

	CodeConfigNotFound = "E100"
	CodeConfigInvalid  = "E101"
	CodeConfigValue    = "E102"

	CodeScenarioInvalid = "E120"
	CodeUsage           = "E121"
)

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Runtime Errors (E001-E099)
	// ============================================

	CodeInvalidWrapTarget: {
		Category: CategoryWrap,
		Message:  "Value cannot be wrapped",
		DocURL:   "https://eyes.vango.dev/errors/E001",
	},
	CodeOutOfRangeMutation: {
		Category: CategoryDelta,
		Message:  "Array mutation index out of range",
		DocURL:   "https://eyes.vango.dev/errors/E002",
	},
	CodeInconsistentDeltaUsage: {
		Category: CategoryDelta,
		Message:  "Inconsistent delta usage",
		DocURL:   "https://eyes.vango.dev/errors/E003",
	},
	CodeDisposedNodeReentry: {
		Category: CategoryGraph,
		Message:  "Derived node already disposed",
		DocURL:   "https://eyes.vango.dev/errors/E004",
	},
	CodeObserverCallbackFailure: {
		Category: CategoryObserver,
		Message:  "Access observer callback failed",
		DocURL:   "https://eyes.vango.dev/errors/E005",
	},
	CodeCascadeBudgetExceeded: {
		Category: CategoryGraph,
		Message:  "Derived run cascade exceeded budget",
		DocURL:   "https://eyes.vango.dev/errors/E006",
	},
	CodeInvalidKey: {
		Category: CategoryWrap,
		Message:  "Key not valid for container kind",
		DocURL:   "https://eyes.vango.dev/errors/E007",
	},
	CodeNotCallable: {
		Category: CategoryWrap,
		Message:  "Stored value is not a method",
		DocURL:   "https://eyes.vango.dev/errors/E008",
	},

	// ============================================
	// Config Errors (E100-E119)
	// ============================================

	CodeConfigNotFound: {
		Category: CategoryConfig,
		Message:  "Config file not found",
		DocURL:   "https://eyes.vango.dev/errors/E100",
	},
	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		DocURL:   "https://eyes.vango.dev/errors/E101",
	},
	CodeConfigValue: {
		Category: CategoryConfig,
		Message:  "Invalid config value",
		DocURL:   "https://eyes.vango.dev/errors/E102",
	},

	// ============================================
	// CLI Errors (E120-E139)
	// ============================================

	CodeScenarioInvalid: {
		Category: CategoryCLI,
		Message:  "Invalid scenario file",
		DocURL:   "https://eyes.vango.dev/errors/E120",
	},
	CodeUsage: {
		Category: CategoryCLI,
		Message:  "Invalid command usage",
		DocURL:   "https://eyes.vango.dev/errors/E121",
	},
}

// GetAllCodes returns all registered error codes in ascending order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
