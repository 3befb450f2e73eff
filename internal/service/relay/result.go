package relay

import "errors"

// Failure kinds. They are informational: every kind maps to HTTP 500.
var (
	ErrRead     = errors.New("read upload")
	ErrPrompt   = errors.New("resolve prompt")
	ErrStage    = errors.New("stage upload")
	ErrUpload   = errors.New("upload to model")
	ErrGenerate = errors.New("generate content")
)

// Error tags an underlying failure with its kind. Its message is the
// underlying message, unchanged.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// KindName returns a short label for logging.
func KindName(err error) string {
	for _, k := range []error{ErrRead, ErrPrompt, ErrStage, ErrUpload, ErrGenerate} {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return "unknown"
}

// Result is the outcome of one relay operation: exactly one of Text or Err is meaningful.
type Result struct {
	Text string
	Err  error
}

func (r Result) OK() bool {
	return r.Err == nil
}

func Success(text string) Result {
	return Result{Text: text}
}

// Fail wraps err with kind. A nil err still produces a failure.
func Fail(kind, err error) Result {
	if err == nil {
		err = kind
	}
	return Result{Err: &Error{Kind: kind, Err: err}}
}
