/*
Copyright 2026 The UniDrop Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package localsend implements the LocalSend v2 wire protocol: UDP
// multicast + mDNS discovery, an HTTPS REST transfer surface backed by a
// self-signed certificate, and an alternate QUIC transport on the same
// identity.
package localsend

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Marandi269/unidrop/core"
)

// CertInfo bundles the generated identity material: the TLS certificate
// (used for both the HTTPS and QUIC listeners), its SHA-256 fingerprint in
// the colon-separated uppercase-hex form LocalSend clients expect, and the
// DeviceID.Local component derived from it.
type CertInfo struct {
	Cert        tls.Certificate
	Fingerprint string // "AA:BB:CC:..."
	DeviceID    string // first 32 hex chars of Fingerprint, no colons
}

// GenerateCertInfo mints a fresh self-signed ECDSA P-256 certificate valid
// for one year, the same lifetime and key type LocalSend clients use for
// their ephemeral per-install identities.
func GenerateCertInfo() (*CertInfo, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, core.WrapIO(err, "generate key")
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, core.WrapIO(err, "generate serial")
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "UniDrop"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IsCA:         true,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, core.WrapIO(err, "create certificate")
	}

	tlsCert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}

	fp := fingerprint(der)
	return &CertInfo{
		Cert:        tlsCert,
		Fingerprint: fp,
		DeviceID:    strings.ReplaceAll(fp, ":", "")[:32],
	}, nil
}

func fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}
