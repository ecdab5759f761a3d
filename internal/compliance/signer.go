package compliance

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	pterrors "pytestlab/internal/errors"
	"pytestlab/internal/frame"
)

// Envelope is the detached signature tuple: {alg, key_id, sig_bytes} plus
// the hash it was computed over.
type Envelope struct {
	Alg      string
	KeyID    string
	SigBytes []byte
	Hash     []byte
}

// Signer holds one instance-configured ECDSA key. ECDSA-over-P256 with
// SHA-256 is exactly what Go's standard library is for, so this is the
// one compliance primitive this module implements on crypto/ecdsa rather
// than a third-party dependency.
type Signer struct {
	priv  *ecdsa.PrivateKey
	keyID string
}

// NewSigner generates a fresh P-256 key pair tagged with keyID. A real
// deployment would load a persisted key; this runtime does not itself
// manage key storage.
func NewSigner(keyID string) (*Signer, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, pterrors.NewComplianceError(pterrors.KeyUnavailable, err)
	}
	return &Signer{priv: priv, keyID: keyID}, nil
}

// NewSignerFromKey wraps an already-loaded private key under keyID.
func NewSignerFromKey(priv *ecdsa.PrivateKey, keyID string) *Signer {
	return &Signer{priv: priv, keyID: keyID}
}

// Sign canonicalizes result, hashes it, and produces a detached envelope.
func (s *Signer) Sign(result *frame.Result, traceFingerprint []string) (*Envelope, error) {
	canon := Canonicalize(result, traceFingerprint)
	hash := sha256.Sum256(canon)

	sig, err := ecdsa.SignASN1(rand.Reader, s.priv, hash[:])
	if err != nil {
		return nil, pterrors.NewComplianceError(pterrors.SignatureInvalid, err)
	}
	return &Envelope{Alg: "ECDSA-P256-SHA256", KeyID: s.keyID, SigBytes: sig, Hash: hash[:]}, nil
}

// PublicKey exposes the signer's public key for out-of-band distribution
// to verifiers that do not hold the private key.
func (s *Signer) PublicKey() *ecdsa.PublicKey { return &s.priv.PublicKey }

// Verify recomputes the canonical bytes and hash of result and checks the
// signature against pub. It returns a bool rather than an error; callers
// that need the failure reason should inspect VerifyErr instead.
func Verify(pub *ecdsa.PublicKey, result *frame.Result, traceFingerprint []string, env *Envelope) bool {
	return VerifyErr(pub, result, traceFingerprint, env) == nil
}

// VerifyErr is Verify's typed-error counterpart.
func VerifyErr(pub *ecdsa.PublicKey, result *frame.Result, traceFingerprint []string, env *Envelope) error {
	canon := Canonicalize(result, traceFingerprint)
	hash := sha256.Sum256(canon)
	if hex.EncodeToString(hash[:]) != hex.EncodeToString(env.Hash) {
		return pterrors.NewComplianceError(pterrors.SignatureInvalid, fmt.Errorf("recomputed hash does not match envelope hash"))
	}
	if !ecdsa.VerifyASN1(pub, hash[:], env.SigBytes) {
		return pterrors.NewComplianceError(pterrors.SignatureInvalid, fmt.Errorf("signature does not verify against key %s", env.KeyID))
	}
	return nil
}

// CanonicalizeSnapshot canonicalizes an instrument's current
// configuration snapshot (enumerated queryable settings from the
// profile) the same way a MeasurementResult is canonicalized, for
// instrument-state signatures.
func CanonicalizeSnapshot(snapshot map[string]string) []byte {
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf []byte
	for _, k := range keys {
		buf = append(buf, []byte(fmt.Sprintf("%s=%s\n", k, snapshot[k]))...)
	}
	return buf
}
