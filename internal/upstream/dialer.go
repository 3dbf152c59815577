package upstream

import "crypto/tls"

// NewClientTLSConfig builds the TLS client configuration used for every
// outbound connection to a configured peer. sni is the host portion of the
// first configured upstream; the pipeline rewrites the Host header to the
// same value so both legs agree on origin identity.
//
// The cipher and version floor matches the modern intermediate profile the
// client-facing listener uses, applied symmetrically to the upstream leg.
func NewClientTLSConfig(sni string) *tls.Config {
	return &tls.Config{
		ServerName: sni,
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
		NextProtos:       []string{"h2", "http/1.1"},
	}
}
