package jwshttp

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vitalvas/detachedjws/buffering"
	"github.com/vitalvas/detachedjws/jws"
)

// SignerSource supplies the signer and initial protected header for one
// message.
type SignerSource interface {
	Signer(r *http.Request) (jws.Signer, jws.Header, error)
}

// SignerFunc adapts a function to SignerSource.
type SignerFunc func(r *http.Request) (jws.Signer, jws.Header, error)

func (f SignerFunc) Signer(r *http.Request) (jws.Signer, jws.Header, error) {
	return f(r)
}

// StaticSigner returns a SignerSource that always uses signer and a copy
// of header.
func StaticSigner(signer jws.Signer, header jws.Header) SignerSource {
	return SignerFunc(func(*http.Request) (jws.Signer, jws.Header, error) {
		return signer, header.Clone(), nil
	})
}

// SignConfig configures the response signing middleware.
type SignConfig struct {
	// Signer supplies the signing key per request. Required.
	Signer SignerSource

	// Header is the response header receiving the detached JWS. Defaults
	// to ResponseSignatureHeader.
	Header string

	// Buffering configures the spill buffer used for response bodies.
	Buffering buffering.Config

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics, when set, records sign results and spills.
	Metrics *Metrics

	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer
}

// SignMiddleware returns a middleware that buffers the response of the
// next handler, signs the body and sends it with the detached JWS header.
// Signing is not best-effort: any failure before the response is sent
// answers 500 Internal Server Error instead.
//
// It returns ErrNoSigner if Signer is nil.
func SignMiddleware(cfg SignConfig) (MiddlewareFunc, error) {
	if cfg.Signer == nil {
		return nil, ErrNoSigner
	}

	header, err := headerName(cfg.Header, ResponseSignatureHeader)
	if err != nil {
		return nil, err
	}

	logger := loggerOrNop(cfg.Logger)

	bufCfg, err := bufferingConfig(cfg.Buffering, logger, cfg.Metrics)
	if err != nil {
		return nil, err
	}

	source := cfg.Signer
	metrics := cfg.Metrics
	tracer := tracerOrDefault(cfg.Tracer)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "jws.sign")
			defer span.End()

			r = r.WithContext(ctx)

			buf, err := buffering.New(bufCfg)
			if err != nil {
				metrics.observeSign(false)
				fail(w, logger, span, err)
				return
			}
			defer buf.Close()

			outer := w.Header().Clone()

			rw := buffering.NewResponseWriter(w, buf)
			next.ServeHTTP(rw, r)

			token, err := signResponse(r, rw, source, span)
			if err != nil {
				metrics.observeSign(false)
				restoreHeader(w.Header(), outer)
				fail(w, logger, span, err)
				return
			}

			metrics.observeSign(true)
			metrics.observeBuffered(buf.Size())

			w.Header().Set(header, string(token))

			if err := rw.Replay(); err != nil {
				recordError(span, err)
				logger.Warn("replay signed response", zap.Error(err))
			}
		})
	}, nil
}

func signResponse(r *http.Request, rw *buffering.ResponseWriter, source SignerSource, span trace.Span) ([]byte, error) {
	if err := rw.Err(); err != nil {
		return nil, err
	}

	signer, h, err := source.Signer(r)
	if err != nil {
		return nil, err
	}

	if signer == nil {
		return nil, jws.ErrNoSigner
	}

	span.SetAttributes(attribute.String("jws.alg", signer.Algorithm().String()))

	return signBuffer(rw.Buffer(), signer, h)
}

// restoreHeader drops the headers the next handler added or changed so an
// error response does not carry them.
func restoreHeader(h, snapshot http.Header) {
	for name := range h {
		delete(h, name)
	}

	for name, values := range snapshot {
		h[name] = values
	}
}
