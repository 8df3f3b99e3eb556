package util

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by a Clerk session token. Subject is the Clerk user id.
type Claims struct {
	Email           string `json:"email,omitempty"`
	SessionID       string `json:"sid,omitempty"`
	AuthorizedParty string `json:"azp,omitempty"`
	jwt.RegisteredClaims
}

func parsePublicKey(pemKey string) (any, error) {
	// Clerk shows the key with literal \n sequences when copied from the dashboard.
	pemKey = strings.ReplaceAll(pemKey, `\n`, "\n")
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, errors.New("failed to decode PEM block containing public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return pub, nil
}

// ParseRSAPublicKey parses a PEM-encoded RSA public key.
func ParseRSAPublicKey(pemKey string) (*rsa.PublicKey, error) {
	pub, err := parsePublicKey(pemKey)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return rsaPub, nil
}

// ParseECDSAPublicKey parses a PEM-encoded ECDSA public key.
func ParseECDSAPublicKey(pemKey string) (*ecdsa.PublicKey, error) {
	pub, err := parsePublicKey(pemKey)
	if err != nil {
		return nil, err
	}
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not ECDSA")
	}
	return ecdsaPub, nil
}

func algorithmOf(tokenString string) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return "", fmt.Errorf("failed to parse token header: %w", err)
	}
	alg, ok := token.Header["alg"].(string)
	if !ok {
		return "", errors.New("token header missing 'alg' field")
	}
	return alg, nil
}

// verificationKey derives the key and its allowed algorithms from keyMaterial alone. A PEM public
// key only verifies RS* or ES* tokens; anything else is an HMAC secret for HS* tokens.
func verificationKey(keyMaterial string) (any, []string, error) {
	if !strings.Contains(keyMaterial, "-----BEGIN") {
		return []byte(keyMaterial), []string{"HS256", "HS384", "HS512"}, nil
	}
	pub, err := parsePublicKey(keyMaterial)
	if err != nil {
		return nil, nil, err
	}
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return k, []string{"RS256", "RS384", "RS512"}, nil
	case *ecdsa.PublicKey:
		return k, []string{"ES256", "ES384", "ES512"}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported public key type %T", pub)
	}
}

// ValidateJWT verifies a session token against keyMaterial, either an HMAC secret or a PEM
// public key. The token header never chooses the key type.
func ValidateJWT(tokenString string, keyMaterial string) (*Claims, error) {
	alg, err := algorithmOf(tokenString)
	if err != nil {
		return nil, fmt.Errorf("failed to detect algorithm: %w", err)
	}

	key, allowed, err := verificationKey(keyMaterial)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(allowed, alg) {
		return nil, fmt.Errorf("signing algorithm %s does not match the configured key", alg)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods(allowed), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
