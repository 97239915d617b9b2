// Package jws computes and checks detached JSON Web Signatures (RFC 7515
// Appendix F) over streamed payloads.
//
// A detached token has the form "protected..signature". The payload is
// never held in memory: SignWriter and VerifyWriter hash it as it is
// written.
//
// # Supported Algorithms
//
//   - RS256, RS384, RS512 (RSASSA-PKCS1-v1_5)
//   - PS256, PS384, PS512 (RSASSA-PSS)
//   - ES256, ES384, ES512 (ECDSA P-256, P-384, P-521)
//   - HS256, HS384, HS512 (HMAC)
//
// EdDSA signs the whole message rather than a digest and cannot be
// streamed, so it is not offered.
//
// # Signing
//
//	signer, err := jws.NewRSASigner(jws.PS256, "key-1", privateKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	w, err := jws.NewSignWriter(jws.PS256, nil, signer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	io.Copy(w, payload)
//	token, err := w.Finish()
//
// # Verifying
//
//	header, err := jws.Verify(token, payload, func(h jws.Header) (jws.Verifier, bool) {
//	    return verifier, h.KeyID() == "key-1"
//	})
//
// # Unencoded Payload
//
// A header with "b64": false signs the raw payload bytes as described in
// RFC 7797. NewSignWriter adds "b64" to "crit" automatically.
package jws
