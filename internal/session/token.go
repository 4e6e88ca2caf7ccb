package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid identity token")

type claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 identity tokens issued by the auth provider. The
// token subject is the user id.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(c.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &Identity{UserID: c.Subject, Email: c.Email, DisplayName: c.Name}, nil
}

// Issue signs a token for id. A zero ttl yields a token without expiry.
func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := v.now()
	c := &claims{
		Email: id.Email,
		Name:  id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.UserID,
			Issuer:   v.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
