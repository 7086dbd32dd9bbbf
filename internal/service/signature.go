package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Hub-Signature-256"

const signaturePrefix = "sha256="

var (
	ErrUnauthorized     = errors.New("webhook signature header missing")
	ErrInvalidSignature = errors.New("webhook signature is invalid")
)

// SignBody returns the header value GitHub would send for body.
func SignBody(body, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the digest of the raw body. It must
// run before the payload is parsed. A missing header yields ErrUnauthorized;
// a malformed or mismatching one yields ErrInvalidSignature.
func VerifySignature(body []byte, header string, secret []byte) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrUnauthorized
	}

	if !strings.HasPrefix(header, signaturePrefix) {
		return ErrInvalidSignature
	}

	// GitHub sends lower-case hex; any other spelling of the digest is rejected.
	if !hmac.Equal([]byte(header), []byte(SignBody(body, secret))) {
		return ErrInvalidSignature
	}
	return nil
}

// Verify is the boolean form of VerifySignature.
func Verify(body []byte, header string, secret []byte) bool {
	return VerifySignature(body, header, secret) == nil
}
