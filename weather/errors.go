package weather

// Kind classifies a weather failure.
type Kind int

const (
	KindNotConfigured Kind = iota
	KindUpstream
	KindUnknownCity
)

// Error is a failure whose Message is shown to the user as is.
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
