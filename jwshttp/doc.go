// Package jwshttp signs and verifies HTTP message bodies with detached
// JSON Web Signatures.
//
// It provides server-side verification (VerifyMiddleware), server-side
// response signing (SignMiddleware) and client-side request signing with
// optional response verification (Transport). Bodies are held in
// buffering spill buffers, so a message of any size is read from the
// connection once and replayed to the next reader from the first byte.
//
// # Verifying Requests
//
// A Policy decides which requests are verified and which verifier checks
// them. KeyPolicy serves a fixed set of keys:
//
//	verifier, err := jws.NewRSAVerifier(jws.PS256, "client-1", publicKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	policy, err := jwshttp.NewKeyPolicy(verifier)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mw, err := jwshttp.VerifyMiddleware(jwshttp.VerifyConfig{Policy: policy})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	http.Handle("/protected", mw(handler))
//
// The signature is checked before the next handler runs. Rejected requests
// never reach it; the policy answers them instead. The handler can read
// the outcome with OutcomeFromContext.
//
// # Signing Responses
//
//	mw, err := jwshttp.SignMiddleware(jwshttp.SignConfig{
//	    Signer: jwshttp.StaticSigner(signer, nil),
//	})
//
// The response is buffered in full, signed, and sent with the token in
// the x-jws-signature header and an exact Content-Length.
//
// # Client Transport
//
//	transport, err := jwshttp.NewTransport(nil, jwshttp.TransportConfig{
//	    Signer:           jwshttp.StaticSigner(signer, nil),
//	    ResponseResolver: resolve,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client := &http.Client{Transport: transport}
//
// # Observability
//
// Every config accepts a *zap.Logger, a *Metrics created with NewMetrics
// and an OpenTelemetry tracer. All three are optional.
package jwshttp
