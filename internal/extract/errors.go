package extract

import "errors"

// Kind classifies why no result could be extracted.
type Kind string

const (
	KindNotConfigured Kind = "not_configured"
	KindUpstream      Kind = "upstream"
	KindMalformed     Kind = "malformed"
)

// Sentinel errors matched by errors.Is against a *Failure of the same kind.
var (
	ErrNotConfigured = errors.New("no credentials configured")
	ErrUpstream      = errors.New("upstream call failed")
	ErrMalformed     = errors.New("response was not valid structured data")
)

// Failure is the typed extraction failure. It always carries a short
// human-readable reason; Err holds the underlying cause when there is one.
type Failure struct {
	Kind   Kind
	Reason string
	Err    error
}

// NotConfigured reports that no scoring service credentials are available.
func NotConfigured() *Failure {
	return &Failure{Kind: KindNotConfigured}
}

// Upstream reports that the scoring service call itself failed.
func Upstream(cause error) *Failure {
	f := &Failure{Kind: KindUpstream, Err: cause}
	if cause != nil {
		f.Reason = cause.Error()
	}
	return f
}

// Malformed reports that the response text held no usable object.
func Malformed(detail string) *Failure {
	return &Failure{Kind: KindMalformed, Reason: detail}
}

func (f *Failure) Error() string {
	msg := f.sentinel().Error()
	if f.Reason != "" {
		msg += ": " + f.Reason
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// Is matches the sentinel for the failure's kind.
func (f *Failure) Is(target error) bool {
	return target == f.sentinel()
}

func (f *Failure) sentinel() error {
	switch f.Kind {
	case KindNotConfigured:
		return ErrNotConfigured
	case KindUpstream:
		return ErrUpstream
	default:
		return ErrMalformed
	}
}

// AsFailure unwraps err into a *Failure if it is one.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
