package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	minisign "github.com/jedisct1/go-minisign"
)

// SignatureSuffix names the detached signature that sits next to a config file.
const SignatureSuffix = ".minisig"

// Verifier checks config files against a trusted Minisign public key.
type Verifier struct {
	publicKey minisign.PublicKey
}

// NewVerifier accepts either a full public key file (comment line plus key) or
// the bare base64 key as printed by `minisign -G`.
func NewVerifier(pubKey string) (*Verifier, error) {
	pubKey = strings.TrimSpace(pubKey)
	if pubKey == "" {
		return nil, errors.New("minisign public key is required")
	}
	var (
		publicKey minisign.PublicKey
		err       error
	)
	if strings.Contains(pubKey, "\n") {
		publicKey, err = minisign.DecodePublicKey(pubKey)
	} else {
		publicKey, err = minisign.NewPublicKey(pubKey)
	}
	if err != nil {
		return nil, fmt.Errorf("parse minisign public key: %w", err)
	}
	return &Verifier{publicKey: publicKey}, nil
}

// Verify checks data against the signature stored at signaturePath.
func (v *Verifier) Verify(data []byte, signaturePath string) error {
	if v == nil {
		return errors.New("signature verifier not configured")
	}
	raw, err := os.ReadFile(signaturePath)
	if err != nil {
		return fmt.Errorf("read signature %q: %w", signaturePath, err)
	}
	signature, err := minisign.DecodeSignature(string(raw))
	if err != nil {
		return fmt.Errorf("decode signature %q: %w", signaturePath, err)
	}
	ok, err := v.publicKey.Verify(data, signature)
	if err != nil {
		return fmt.Errorf("verify %q: %w", signaturePath, err)
	}
	if !ok {
		return errors.New("signature verification failed")
	}
	return nil
}

// LoadVerified reads path once, checks it against path+".minisig" and only
// then parses it, so credentials from an unsigned file are never used.
func LoadVerified(ctx context.Context, path string, verifier *Verifier) (Config, error) {
	if err := ctx.Err(); err != nil {
		return Config{}, err
	}
	data, err := read(path)
	if err != nil {
		return Config{}, err
	}
	if err := verifier.Verify(data, path+SignatureSuffix); err != nil {
		return Config{}, fmt.Errorf("config %q: %w", path, err)
	}
	return Parse(data, path)
}
