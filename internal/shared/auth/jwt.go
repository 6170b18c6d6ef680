package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Claims is the staff identity carried by a bearer token. Sub is the staff
// id recorded on audit entries; Name is the display name.
type Claims struct {
	Sub  string `json:"sub"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
	Iss  string `json:"iss,omitempty"`
	Exp  int64  `json:"exp,omitempty"`
	Nbf  int64  `json:"nbf,omitempty"`
	Iat  int64  `json:"iat,omitempty"`
}

var (
	errMissingSecret = errors.New("jwt secret not configured")

	// ErrInvalidToken covers malformed, tampered and wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for tokens outside their validity window.
	ErrExpiredToken = fmt.Errorf("%w: expired or not yet valid", ErrInvalidToken)
)

const (
	defaultTTL    = 12 * time.Hour
	defaultLeeway = 30 * time.Second
)

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ,omitempty"`
}

// Signer issues and checks HS256 staff tokens.
type Signer struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Leeway time.Duration
	Now    func() time.Time
}

// Sign encodes claims, filling iat, exp and iss when unset.
func (s Signer) Sign(claims Claims) (string, error) {
	if len(s.Secret) == 0 {
		return "", errMissingSecret
	}
	if strings.TrimSpace(claims.Sub) == "" {
		return "", errors.New("sub is required")
	}
	now := s.now().Unix()
	if claims.Iat == 0 {
		claims.Iat = now
	}
	if claims.Exp == 0 {
		ttl := s.TTL
		if ttl <= 0 {
			ttl = defaultTTL
		}
		claims.Exp = now + int64(ttl/time.Second)
	}
	if claims.Iss == "" {
		claims.Iss = s.Issuer
	}

	headerJSON, err := json.Marshal(header{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	input := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON)
	return input + "." + sign(input, s.Secret), nil
}

// Verify checks the signature, algorithm, issuer and validity window.
func (s Signer) Verify(token string) (Claims, error) {
	if len(s.Secret) == 0 {
		return Claims{}, errMissingSecret
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, ErrInvalidToken
	}

	var h header
	if err := decodeSegment(parts[0], &h); err != nil || h.Alg != "HS256" {
		return Claims{}, ErrInvalidToken
	}
	expected := sign(parts[0]+"."+parts[1], s.Secret)
	if !hmac.Equal([]byte(parts[2]), []byte(expected)) {
		return Claims{}, ErrInvalidToken
	}

	var claims Claims
	if err := decodeSegment(parts[1], &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Sub) == "" {
		return Claims{}, ErrInvalidToken
	}
	if s.Issuer != "" && claims.Iss != s.Issuer {
		return Claims{}, ErrInvalidToken
	}

	leeway := s.Leeway
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	now := s.now()
	if claims.Exp > 0 && now.After(time.Unix(claims.Exp, 0).Add(leeway)) {
		return Claims{}, ErrExpiredToken
	}
	if claims.Nbf > 0 && now.Add(leeway).Before(time.Unix(claims.Nbf, 0)) {
		return Claims{}, ErrExpiredToken
	}
	return claims, nil
}

func (s Signer) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// SignJWT signs claims with the signer configured from the environment.
func SignJWT(claims Claims) (string, error) {
	s, err := SignerFromEnv()
	if err != nil {
		return "", err
	}
	return s.Sign(claims)
}

// VerifyJWT verifies a token with the signer configured from the environment.
func VerifyJWT(token string) (Claims, error) {
	s, err := SignerFromEnv()
	if err != nil {
		return Claims{}, err
	}
	return s.Verify(token)
}

// SignerFromEnv reads JWT_SECRET and JWT_ISSUER. Outside production a fixed
// development secret is used when JWT_SECRET is empty.
func SignerFromEnv() (Signer, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	env := strings.ToLower(strings.TrimSpace(os.Getenv("ENV")))
	if secret == "" {
		if env == "production" || env == "prod" {
			return Signer{}, fmt.Errorf("%w: JWT_SECRET required in production", errMissingSecret)
		}
		secret = "dev-secret"
	}
	return Signer{Secret: []byte(secret), Issuer: strings.TrimSpace(os.Getenv("JWT_ISSUER"))}, nil
}

func decodeSegment(seg string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func sign(input string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(input))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
