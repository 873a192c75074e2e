package executor

import (
	"errors"

	"github.com/mcigo/mci/pkg/security"
	"github.com/mcigo/mci/pkg/template"
)

// Sentinel errors for executor faults. Every fault is caught at the
// dispatcher boundary and converted into an error Result; these sentinels
// let the envelope carry a stable fault kind in its metadata.
var (
	// ErrTransport indicates a network-level HTTP failure: connection
	// refused, DNS failure, or a per-attempt timeout.
	ErrTransport = errors.New("transport failure")

	// ErrProcess indicates a CLI process fault: spawn failure or timeout.
	ErrProcess = errors.New("process failure")

	// ErrFileNotFound indicates the file executor's target does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrFilePermission indicates the file exists but cannot be read.
	ErrFilePermission = errors.New("file permission denied")

	// ErrAuth indicates an auth configuration could not be applied, most
	// commonly an OAuth2 token fetch failure.
	ErrAuth = errors.New("auth failure")
)

// faultKind maps an error to its stable fault identifier for the result
// metadata.
func faultKind(err error) string {
	switch {
	case errors.Is(err, template.ErrSyntax):
		return "template_syntax"
	case errors.Is(err, template.ErrResolution):
		return "template_resolution"
	case errors.Is(err, security.ErrPathDenied):
		return "path_security"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrProcess):
		return "process"
	case errors.Is(err, ErrFileNotFound):
		return "file_not_found"
	case errors.Is(err, ErrFilePermission):
		return "file_permission"
	case errors.Is(err, ErrAuth):
		return "auth"
	default:
		return "internal"
	}
}
