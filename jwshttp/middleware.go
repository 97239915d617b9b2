package jwshttp

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"

	"github.com/vitalvas/detachedjws/buffering"
	"github.com/vitalvas/detachedjws/jws"
)

const (
	// SignatureHeader carries the detached JWS of a request body.
	SignatureHeader = "X-JWS-Signature"

	// ResponseSignatureHeader carries the detached JWS of a response body.
	ResponseSignatureHeader = "x-jws-signature"
)

const tracerName = "github.com/vitalvas/detachedjws/jwshttp"

// MiddlewareFunc is a function which receives an http.Handler and returns
// another http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Middleware allows MiddlewareFunc to be chained with other middleware
// types.
func (mw MiddlewareFunc) Middleware(handler http.Handler) http.Handler {
	return mw(handler)
}

// Chain applies middlewares so that the first one is outermost.
func Chain(h http.Handler, mws ...MiddlewareFunc) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}

	return h
}

func headerName(name, fallback string) (string, error) {
	if name == "" {
		return fallback, nil
	}

	if !httpguts.ValidHeaderFieldName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHeaderName, name)
	}

	return name, nil
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}

	return l
}

func tracerOrDefault(t trace.Tracer) trace.Tracer {
	if t == nil {
		return otel.Tracer(tracerName)
	}

	return t
}

// bufferingConfig fills in the logger and spill observer of cfg from the
// middleware's own settings.
func bufferingConfig(cfg buffering.Config, logger *zap.Logger, metrics *Metrics) (buffering.Config, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger
	}

	if cfg.Observer == nil && metrics != nil {
		cfg.Observer = metrics
	}

	return cfg, cfg.Validate()
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// verifyBody checks token against the full body and leaves the body
// rewound for the next reader. Classified rejections are returned as
// *VerifyError; any other error is fatal.
func verifyBody(body *buffering.Body, token string, resolve jws.Resolver) (jws.Header, error) {
	if token == "" {
		return nil, &VerifyError{Kind: KindHeaderMissing, Err: ErrHeaderMissing}
	}

	vw, err := jws.NewVerifyWriter([]byte(token), resolve)
	if err != nil {
		return nil, &VerifyError{Kind: KindMalformed, Err: err}
	}

	if err := rewind(body); err != nil {
		return vw.Header(), err
	}

	if _, err := io.Copy(vw, body); err != nil {
		return vw.Header(), err
	}

	if err := vw.Finish(); err != nil {
		if errors.Is(err, jws.ErrSignatureInvalid) {
			return vw.Header(), &VerifyError{Kind: KindSignatureMismatch, Err: err}
		}

		return vw.Header(), err
	}

	return vw.Header(), body.Rewind()
}

// rewind is Body.Rewind with ErrOverflow classified as a rejection.
func rewind(body *buffering.Body) error {
	err := body.Rewind()
	if errors.Is(err, buffering.ErrOverflow) {
		return &VerifyError{Kind: KindOverflow, Err: err}
	}

	return err
}

// signBuffer runs a full read pass of buf through a SignWriter.
func signBuffer(buf *buffering.Buffer, signer jws.Signer, header jws.Header) ([]byte, error) {
	sw, err := jws.NewSignWriter(signer.Algorithm(), header, signer)
	if err != nil {
		return nil, err
	}

	if _, err := buf.NewReader().WriteTo(sw); err != nil {
		return nil, err
	}

	token, err := sw.Finish()
	if err != nil {
		return nil, err
	}

	if !httpguts.ValidHeaderFieldValue(string(token)) {
		return nil, fmt.Errorf("%w: token is not a valid header value", jws.ErrMalformedToken)
	}

	return token, nil
}
