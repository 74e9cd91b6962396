package ir

import "fmt"

// Severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic codes. D1xx are structural parse problems, D2xx are semantic
// checks over the whole program, D3xx are raised while dispatching effects.
const (
	CodeSyntax             = "D100" // unexpected token or unterminated block
	CodeMissingDescription = "D101" // scene without description
	CodeInvalidSceneID     = "D102" // scene id outside [a-zA-Z0-9_-]+
	CodeDuplicateScene     = "D103" // scene declared twice, later wins
	CodeMissingLeadsTo     = "D104" // `when` without `leadsTo`
	CodeEmptyRule          = "D105" // empty condition or action
	CodeUnknownField       = "D106" // unknown scene field
	CodeDanglingAnnotation = "D107" // annotation not followed by `when`

	CodeUndefinedScene   = "D201" // goto target not declared
	CodeUnreachableScene = "D202" // scene never targeted by goto

	CodeUnknownEffect    = "D301" // effect name not registered
	CodeMalformedAction  = "D302" // action text is not NAME(ARGS)
	CodeMissingArgument  = "D303" // required effect argument absent
	CodeHostEffectFailed = "D304" // host-defined effect returned an error
)

// Diagnostic is a non-fatal problem found while parsing or dispatching.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`

	// Context is the offending scene id or rule action text.
	Context string `json:"context,omitempty"`

	// Line is the 1-based source line (0 if not tied to a source position).
	Line int `json:"line,omitempty"`
}

// String renders the diagnostic for human-readable output.
func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s [%s] line %d: %s", d.Severity, d.Code, d.Line, d.Message)
	}
	return fmt.Sprintf("%s [%s] %s", d.Severity, d.Code, d.Message)
}

// Errorf builds an error-severity diagnostic.
func Errorf(code, context string, line int, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: SeverityError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Context:  context,
		Line:     line,
	}
}

// Warnf builds a warning-severity diagnostic.
func Warnf(code, context string, line int, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: SeverityWarning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Context:  context,
		Line:     line,
	}
}
