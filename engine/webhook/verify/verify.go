// Package verify implements the per-service signature verifiers used by
// webhook ingress (§4.4) to reject forged deliveries before they reach the
// event queue.
package verify

import (
	"context"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
)

// Config describes how to verify one service's webhook deliveries.
type Config struct {
	Strategy string
	Secret   string
	Header   string
}

// Verifier checks an inbound request's signature against its raw body.
type Verifier interface {
	Verify(ctx context.Context, req *http.Request, body []byte) error
}

// New builds a Verifier for cfg.Strategy. Each per-service strategy
// matches the HMAC construction (or, for Microsoft/Google, the non-HMAC
// mechanism) that service actually uses (§4.4 step 2).
func New(cfg Config) (Verifier, error) {
	switch cfg.Strategy {
	case "", "none":
		return noneVerifier{}, nil
	case "hmac":
		if cfg.Header == "" {
			return nil, fmt.Errorf("webhook verify: missing signature header name")
		}
		secret, err := resolveSecret(cfg.Secret)
		if err != nil {
			return nil, err
		}
		return hmacVerifier{secret: secret, header: cfg.Header}, nil
	case "stripe":
		secret, err := resolveSecret(cfg.Secret)
		if err != nil {
			return nil, err
		}
		return stripeVerifier{secret: secret, tolerance: 5 * time.Minute}, nil
	case "github":
		secret, err := resolveSecret(cfg.Secret)
		if err != nil {
			return nil, err
		}
		return githubVerifier{secret: secret}, nil
	case "slack-v0":
		secret, err := resolveSecret(cfg.Secret)
		if err != nil {
			return nil, err
		}
		return slackV0Verifier{secret: secret, tolerance: 5 * time.Minute}, nil
	case "notion":
		secret, err := resolveSecret(cfg.Secret)
		if err != nil {
			return nil, err
		}
		return notionVerifier{secret: secret}, nil
	case "fitbit-sha1-base64":
		secret, err := resolveSecret(cfg.Secret)
		if err != nil {
			return nil, err
		}
		return fitbitVerifier{secret: secret}, nil
	case "todoist-sha256-base64":
		secret, err := resolveSecret(cfg.Secret)
		if err != nil {
			return nil, err
		}
		return todoistVerifier{secret: secret}, nil
	case "microsoft-clientstate":
		return microsoftClientStateVerifier{}, nil
	case "google":
		secret, err := resolveSecret(cfg.Secret)
		if err != nil {
			return nil, err
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(secret))
		if err != nil {
			return nil, fmt.Errorf("webhook verify: invalid Google public key: %w", err)
		}
		return googleJWTVerifier{publicKey: key}, nil
	default:
		return nil, fmt.Errorf("webhook verify: unknown verification strategy %q", cfg.Strategy)
	}
}

// resolveSecret requires a non-empty secret, resolving an "env://NAME"
// indirection against the process environment.
func resolveSecret(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("webhook verify: empty secret")
	}
	if name, ok := strings.CutPrefix(secret, "env://"); ok {
		v, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("webhook verify: secret env not set: %s", name)
		}
		return v, nil
	}
	return secret, nil
}

type noneVerifier struct{}

func (noneVerifier) Verify(context.Context, *http.Request, []byte) error { return nil }

type hmacVerifier struct {
	secret string
	header string
}

func (v hmacVerifier) Verify(_ context.Context, req *http.Request, body []byte) error {
	sig := req.Header.Get(v.header)
	if sig == "" {
		return fmt.Errorf("webhook verify: missing signature header %s", v.header)
	}
	want, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("webhook verify: invalid signature encoding: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(body)
	got := mac.Sum(nil)
	if !hmac.Equal(got, want) {
		return fmt.Errorf("webhook verify: signature mismatch")
	}
	return nil
}

type stripeVerifier struct {
	secret    string
	tolerance time.Duration
}

func (v stripeVerifier) Verify(_ context.Context, req *http.Request, body []byte) error {
	header := req.Header.Get("Stripe-Signature")
	var ts int64
	var haveTS bool
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err == nil {
				ts = parsed
				haveTS = true
			}
		case "v1":
			sigs = append(sigs, kv[1])
		}
	}
	if !haveTS || len(sigs) == 0 {
		return fmt.Errorf("webhook verify: invalid Stripe-Signature format")
	}
	age := time.Since(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if age > v.tolerance {
		return fmt.Errorf("webhook verify: timestamp skew too large")
	}
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	want := mac.Sum(nil)
	for _, sig := range sigs {
		got, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(got, want) {
			return nil
		}
	}
	return fmt.Errorf("webhook verify: signature mismatch")
}

type githubVerifier struct {
	secret string
}

func (v githubVerifier) Verify(_ context.Context, req *http.Request, body []byte) error {
	header := req.Header.Get("X-Hub-Signature-256")
	if header == "" {
		return fmt.Errorf("webhook verify: missing GitHub signature header")
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return fmt.Errorf("webhook verify: invalid GitHub signature header")
	}
	if sig == "" {
		return fmt.Errorf("webhook verify: missing GitHub signature")
	}
	want, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("webhook verify: invalid GitHub signature encoding: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(body)
	got := mac.Sum(nil)
	if !hmac.Equal(got, want) {
		return fmt.Errorf("webhook verify: signature mismatch")
	}
	return nil
}

// slackV0Verifier implements Slack's "v0" signing scheme: HMAC-SHA256 over
// `v0:{timestamp}:{body}`, with a timestamp freshness check against replay.
type slackV0Verifier struct {
	secret    string
	tolerance time.Duration
}

func (v slackV0Verifier) Verify(_ context.Context, req *http.Request, body []byte) error {
	header := req.Header.Get("X-Slack-Signature")
	if header == "" {
		return fmt.Errorf("webhook verify: missing Slack signature header")
	}
	sig, ok := strings.CutPrefix(header, "v0=")
	if !ok {
		return fmt.Errorf("webhook verify: invalid Slack signature header")
	}
	want, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("webhook verify: invalid Slack signature encoding: %w", err)
	}
	tsHeader := req.Header.Get("X-Slack-Request-Timestamp")
	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return fmt.Errorf("webhook verify: missing or invalid Slack timestamp header")
	}
	age := time.Since(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if age > v.tolerance {
		return fmt.Errorf("webhook verify: timestamp skew too large")
	}
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte("v0:"))
	mac.Write([]byte(tsHeader))
	mac.Write([]byte(":"))
	mac.Write(body)
	got := mac.Sum(nil)
	if !hmac.Equal(got, want) {
		return fmt.Errorf("webhook verify: signature mismatch")
	}
	return nil
}

// notionVerifier implements Notion's HMAC-SHA256 header, the same
// construction as GitHub's but under its own header name.
type notionVerifier struct {
	secret string
}

func (v notionVerifier) Verify(_ context.Context, req *http.Request, body []byte) error {
	header := req.Header.Get("X-Notion-Signature")
	if header == "" {
		return fmt.Errorf("webhook verify: missing Notion signature header")
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return fmt.Errorf("webhook verify: invalid Notion signature header")
	}
	if sig == "" {
		return fmt.Errorf("webhook verify: missing Notion signature")
	}
	want, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("webhook verify: invalid Notion signature encoding: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(body)
	got := mac.Sum(nil)
	if !hmac.Equal(got, want) {
		return fmt.Errorf("webhook verify: signature mismatch")
	}
	return nil
}

// fitbitVerifier implements Fitbit's HMAC-SHA1, base64-encoded signature
// header (distinct from most other services, which use SHA-256 hex).
type fitbitVerifier struct {
	secret string
}

func (v fitbitVerifier) Verify(_ context.Context, req *http.Request, body []byte) error {
	sig := req.Header.Get("X-Fitbit-Signature")
	if sig == "" {
		return fmt.Errorf("webhook verify: missing Fitbit signature header")
	}
	want, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("webhook verify: invalid Fitbit signature encoding: %w", err)
	}
	mac := hmac.New(sha1.New, []byte(v.secret))
	mac.Write(body)
	got := mac.Sum(nil)
	if !hmac.Equal(got, want) {
		return fmt.Errorf("webhook verify: signature mismatch")
	}
	return nil
}

// todoistVerifier implements Todoist's HMAC-SHA256, base64-encoded
// signature header.
type todoistVerifier struct {
	secret string
}

func (v todoistVerifier) Verify(_ context.Context, req *http.Request, body []byte) error {
	sig := req.Header.Get("X-Todoist-Hmac-SHA256")
	if sig == "" {
		return fmt.Errorf("webhook verify: missing Todoist signature header")
	}
	want, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("webhook verify: invalid Todoist signature encoding: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(body)
	got := mac.Sum(nil)
	if !hmac.Equal(got, want) {
		return fmt.Errorf("webhook verify: signature mismatch")
	}
	return nil
}

// microsoftClientStateVerifier checks that Graph echoed back a
// clientState at all. Graph has no HMAC signature of its own — the engine
// assigns each subscription's clientState to equal its owner id when the
// subscription is created, so Graph's echo both authenticates the
// delivery and resolves the tenant (§4.4 step 4); a request missing it
// entirely cannot be a genuine Graph notification.
type microsoftClientStateVerifier struct{}

func (microsoftClientStateVerifier) Verify(_ context.Context, _ *http.Request, body []byte) error {
	if gjson.GetBytes(body, "value.0.clientState").String() == "" {
		return fmt.Errorf("webhook verify: missing Microsoft Graph clientState")
	}
	return nil
}

// googleJWTVerifier verifies the RS256 bearer token Pub/Sub push attaches
// to each delivery (Google has no per-message HMAC; push auth is an OIDC
// ID token signed by Google) against a configured public key.
type googleJWTVerifier struct {
	publicKey *rsa.PublicKey
}

func (v googleJWTVerifier) Verify(_ context.Context, req *http.Request, _ []byte) error {
	authz := req.Header.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(authz, "Bearer ")
	if !ok || tokenStr == "" {
		return fmt.Errorf("webhook verify: missing Google bearer token")
	}
	_, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.publicKey, nil
	})
	if err != nil {
		return fmt.Errorf("webhook verify: invalid Google bearer token: %w", err)
	}
	return nil
}
