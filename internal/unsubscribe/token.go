// Package unsubscribe signs and checks the links that let a subscriber opt
// out without logging in. A token is "<unix millis>.<hex hmac-sha256>" over
// "email:millis".
package unsubscribe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"matchastock/internal/clock"
)

// Validity is how long a token is honored after it was issued.
const Validity = 365 * 24 * time.Hour

// maxSkew tolerates issuers whose clock runs slightly ahead.
const maxSkew = 5 * time.Minute

var (
	ErrInvalid = errors.New("invalid unsubscribe token")
	ErrExpired = errors.New("unsubscribe token expired")
)

func Generate(email, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.UnixMilli(), 10)
	return ts + "." + sign(normalizeEmail(email), ts, secret)
}

// Verify checks token for email at time now.
func Verify(email, token, secret string, now time.Time) error {
	ts, sig, ok := strings.Cut(token, ".")
	if !ok || ts == "" || sig == "" {
		return ErrInvalid
	}
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalid
	}
	// Older links were signed over the address exactly as it was given.
	if !hmac.Equal([]byte(sig), []byte(sign(normalizeEmail(email), ts, secret))) &&
		!hmac.Equal([]byte(sig), []byte(sign(email, ts, secret))) {
		return ErrInvalid
	}
	issued := time.UnixMilli(ms)
	if issued.After(now.Add(maxSkew)) {
		return ErrInvalid
	}
	if now.Sub(issued) > Validity {
		return ErrExpired
	}
	return nil
}

func sign(email, ts, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(email + ":" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

type Scope string

const (
	ScopeAll     Scope = ""
	ScopeBrand   Scope = "brand"
	ScopeProduct Scope = "product"
)

// Signer binds the secret, the public base URL and a clock.
type Signer struct {
	secret  string
	baseURL string
	clk     clock.Clock
}

func NewSigner(secret, baseURL string, clk clock.Clock) *Signer {
	return &Signer{secret: secret, baseURL: strings.TrimRight(baseURL, "/"), clk: clk}
}

func (s *Signer) Token(email string) string { return Generate(email, s.secret, s.clk.Now()) }

func (s *Signer) Verify(email, token string) error {
	return Verify(email, token, s.secret, s.clk.Now())
}

// URL builds the unsubscribe link for email. id names the brand or product
// for scoped links and is ignored for ScopeAll.
func (s *Signer) URL(email string, scope Scope, id string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", s.Token(email))
	if scope != ScopeAll && id != "" {
		q.Set("type", string(scope))
		q.Set(string(scope), id)
	}
	return s.baseURL + "/api/unsubscribe?" + q.Encode()
}
