package jwshttp

import (
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vitalvas/detachedjws/buffering"
	"github.com/vitalvas/detachedjws/jws"
)

// VerifyConfig configures the server-side verification middleware.
type VerifyConfig struct {
	// Policy decides whether and how to verify. Required.
	Policy Policy

	// Header is the request header holding the detached JWS. Defaults to
	// SignatureHeader.
	Header string

	// Buffering configures the spill buffer used for request bodies.
	Buffering buffering.Config

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics, when set, records outcomes and spills.
	Metrics *Metrics

	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer
}

// VerifyMiddleware returns a middleware that verifies the detached JWS of
// each request body before the next handler runs. The next handler always
// reads the body from the buffer, never from the connection.
//
// Rejections go to Policy.HandleError and never reach the next handler.
// Transport and spill-file failures answer 500 Internal Server Error.
//
// It returns ErrNoPolicy if Policy is nil.
func VerifyMiddleware(cfg VerifyConfig) (MiddlewareFunc, error) {
	if cfg.Policy == nil {
		return nil, ErrNoPolicy
	}

	header, err := headerName(cfg.Header, SignatureHeader)
	if err != nil {
		return nil, err
	}

	logger := loggerOrNop(cfg.Logger)

	bufCfg, err := bufferingConfig(cfg.Buffering, logger, cfg.Metrics)
	if err != nil {
		return nil, err
	}

	policy := cfg.Policy
	metrics := cfg.Metrics
	tracer := tracerOrDefault(cfg.Tracer)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "jws.verify")
			defer span.End()

			r = r.WithContext(ctx)

			body, owned, err := buffering.EnableRequestBuffering(bufCfg, r)
			if err != nil {
				fail(w, logger, span, err)
				return
			}

			if owned {
				defer body.Close()
			}

			outcome, err := verifyRequest(r, body, header, policy, span)
			if err != nil {
				var verr *VerifyError
				if !errors.As(err, &verr) {
					fail(w, logger, span, err)
					return
				}

				metrics.observeVerify(OutcomeFailed, verr.Kind)
				span.SetAttributes(attribute.String("jws.outcome", OutcomeFailed.String()), attribute.String("jws.reject", verr.Kind.String()))
				logger.Debug("reject request",
					zap.String("kind", verr.Kind.String()),
					zap.String("path", r.URL.Path),
					zap.Error(verr.Err),
				)

				policy.HandleError(w, r, verr)

				return
			}

			metrics.observeVerify(outcome, 0)
			metrics.observeBuffered(body.Buffer().Size())
			span.SetAttributes(attribute.String("jws.outcome", outcome.String()))

			next.ServeHTTP(w, r.WithContext(withOutcome(r.Context(), outcome)))
		})
	}, nil
}

// verifyRequest runs the decision, header, resolve and digest steps. On a
// nil error the body is rewound for the next handler.
func verifyRequest(r *http.Request, body *buffering.Body, header string, policy Policy, span trace.Span) (Outcome, error) {
	if !policy.ShouldVerify(r) {
		if err := rewind(body); err != nil {
			return OutcomeNotAttempted, err
		}

		return OutcomeNotAttempted, nil
	}

	resolve := func(h jws.Header) (jws.Verifier, bool) {
		return policy.ResolveVerifier(r, h)
	}

	h, err := verifyBody(body, r.Header.Get(header), resolve)
	if h != nil {
		span.SetAttributes(attribute.String("jws.alg", h.Algorithm().String()))
	}

	if err != nil {
		return OutcomeFailed, err
	}

	return OutcomeSucceeded, nil
}

// fail answers a fatal error with a bare 500.
func fail(w http.ResponseWriter, logger *zap.Logger, span trace.Span, err error) {
	recordError(span, err)
	logger.Error("detached jws", zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
