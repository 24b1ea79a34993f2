// Package errors provides typed errors with exit codes for desklab.
//
// # Error Types
//
// DeskError is the base error type that wraps an error with an exit code:
//
//	type DeskError struct {
//	    Code    int    // Exit code
//	    Message string // User-facing message
//	    Cause   error  // Wrapped error
//	}
//
// # Exit Codes
//
//	ExitSuccess         = 0 // Success
//	ExitGeneralError    = 1 // General/validation errors
//	ExitNotFound        = 2 // Unknown user, session or image
//	ExitPortAllocation  = 4 // No free display port
//	ExitExternalFailure = 5 // Container runtime or document store failed
//	ExitConfigError     = 6 // Configuration error
//	ExitForbidden       = 7 // Authorization predicate denied the action
//	ExitUnauthorized    = 8 // Authentication failed
//
// # Error Constructors
//
//	errors.SessionNotFound("alice", "c1")
//	errors.ExternalFailure("container create", err)
//	errors.PortAllocationFailed(err)
//
// # Extracting Exit Codes
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
package errors
