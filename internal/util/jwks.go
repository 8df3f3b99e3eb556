package util

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
)

type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK holds the public members of an RSA or EC JSON Web Key.
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

func ParseJWKS(data []byte) (*JWKS, error) {
	var jwks JWKS
	if err := json.Unmarshal(data, &jwks); err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	if len(jwks.Keys) == 0 {
		return nil, errors.New("no keys found in JWKS")
	}
	return &jwks, nil
}

// SigningKey returns the key with the given kid, or the first signing key when kid is empty.
func (s *JWKS) SigningKey(kid string) (JWK, error) {
	for _, k := range s.Keys {
		if kid != "" {
			if k.Kid == kid {
				return k, nil
			}
			continue
		}
		if k.Use == "" || k.Use == "sig" {
			return k, nil
		}
	}
	if kid != "" {
		return JWK{}, fmt.Errorf("no key with kid %q in JWKS", kid)
	}
	return JWK{}, errors.New("no signing key in JWKS")
}

func decodeSegment(name, v string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", name, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%s is empty", name)
	}
	return b, nil
}

// PublicKey builds the crypto key the JWK describes.
func (k JWK) PublicKey() (any, error) {
	switch k.Kty {
	case "RSA":
		n, err := decodeSegment("modulus", k.N)
		if err != nil {
			return nil, err
		}
		e, err := decodeSegment("exponent", k.E)
		if err != nil {
			return nil, err
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(new(big.Int).SetBytes(e).Int64())}, nil
	case "EC":
		var curve elliptic.Curve
		switch k.Crv {
		case "P-256":
			curve = elliptic.P256()
		case "P-384":
			curve = elliptic.P384()
		case "P-521":
			curve = elliptic.P521()
		default:
			return nil, fmt.Errorf("unsupported curve %q", k.Crv)
		}
		x, err := decodeSegment("X coordinate", k.X)
		if err != nil {
			return nil, err
		}
		y, err := decodeSegment("Y coordinate", k.Y)
		if err != nil {
			return nil, err
		}
		return &ecdsa.PublicKey{Curve: curve, X: new(big.Int).SetBytes(x), Y: new(big.Int).SetBytes(y)}, nil
	default:
		return nil, fmt.Errorf("unsupported key type %q", k.Kty)
	}
}

// PEM encodes the key as a PKIX "PUBLIC KEY" block, the format CLERK_JWT_KEY expects.
func (k JWK) PEM() (string, error) {
	pub, err := k.PublicKey()
	if err != nil {
		return "", err
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("error marshaling public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}
