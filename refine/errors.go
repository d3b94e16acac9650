package refine

// Kind classifies a refinement failure for callers that need to map it onto
// a transport status.
type Kind int

const (
	KindInvalid Kind = iota
	KindNotConfigured
	KindProvider
)

// Error is a failure whose Message is meant to be shown to the user as is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalid(msg string) *Error {
	return &Error{Kind: KindInvalid, Message: msg}
}

func notConfigured(msg string) *Error {
	return &Error{Kind: KindNotConfigured, Message: msg}
}

func providerFailure(err error) *Error {
	return &Error{Kind: KindProvider, Message: "Error with Gemini API: " + err.Error(), Err: err}
}
