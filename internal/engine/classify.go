package engine

import "strings"

// Classify maps a sandbox or analyzer failure onto the error taxonomy
// using message patterns. Security-gate failures never reach this path;
// they are typed explicitly by the engine.
func Classify(err error) *Error {
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(msg, "SyntaxError"):
		return &Error{
			Kind:        KindSyntax,
			Severity:    SeverityMedium,
			Message:     msg,
			Recoverable: true,
		}
	case strings.Contains(lower, "timeout"):
		return &Error{
			Kind:        KindTimeout,
			Severity:    SeverityHigh,
			Message:     msg,
			Recoverable: true,
		}
	case strings.Contains(lower, "memory"), strings.Contains(lower, "heap"):
		return &Error{
			Kind:        KindMemory,
			Severity:    SeverityHigh,
			Message:     msg,
			Recoverable: false,
		}
	default:
		return &Error{
			Kind:        KindRuntime,
			Severity:    SeverityMedium,
			Message:     msg,
			Recoverable: true,
		}
	}
}

// statusFor maps a classified error kind onto a result status.
func statusFor(e *Error) Status {
	if e.Kind == KindTimeout {
		return StatusTimeout
	}
	return StatusError
}

// cancelledError builds the taxonomy entry for a cooperative abort.
func cancelledError() *Error {
	return &Error{
		Kind:        KindSystem,
		Severity:    SeverityLow,
		Message:     "execution cancelled",
		Recoverable: true,
	}
}

// timeoutError builds the taxonomy entry for a deadline hit.
func timeoutError(msg string) *Error {
	return &Error{
		Kind:        KindTimeout,
		Severity:    SeverityHigh,
		Message:     msg,
		Recoverable: true,
	}
}

// securityError builds the taxonomy entry for a strict-mode gate failure.
func securityError(risks []string) *Error {
	return &Error{
		Kind:        KindSecurity,
		Severity:    SeverityCritical,
		Message:     "security risks detected: " + strings.Join(risks, "; "),
		Recoverable: false,
	}
}
