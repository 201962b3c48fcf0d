package errcode

// Code is a stable, wire-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable). They appear verbatim in NAK frames.
const (
	OK               Code = "ok"
	InvalidPayload   Code = "invalid_payload"   // unparsable number, missing fields
	OutOfRange       Code = "out_of_range"      // parsed but outside the accepted range
	UnknownCommand   Code = "unknown_command"   // keyword not recognised
	EmergencyLatched Code = "emergency_latched" // motion refused until CLEAR
	InvalidParams    Code = "invalid_params"    // configuration rejected
	Unsupported      Code = "unsupported"
	Timeout          Code = "timeout"
	LinkDown         Code = "link_down"

	Error Code = "error" // generic fallback
)

// E keeps a Code together with the operation, a short message and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// New builds an *E.
func New(c Code, op, msg string) *E { return &E{C: c, Op: op, Msg: msg} }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
