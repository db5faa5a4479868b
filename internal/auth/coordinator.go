// Package auth owns broker access tokens. The Coordinator is the only
// component that holds a token; everything else borrows it per request
// through the TokenSource interface.
//
// Refresh is single-flight: concurrent callers finding a stale token all
// await one outbound token request. A failed refresh propagates its error to
// every waiter and clears the in-flight state.
package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"algoengine/internal/broker"
	"algoengine/internal/model"
)

// refreshMargin is how much remaining validity a cached token needs before
// it is handed out without a refresh.
const refreshMargin = 5 * time.Minute

// TokenAPI is the slice of the broker client the coordinator needs.
type TokenAPI interface {
	GenerateToken(ctx context.Context, req broker.TokenRequest) (broker.TokenGrant, error)
	GenerateSession(ctx context.Context, req broker.SessionRequest) (broker.TokenGrant, error)
}

// Coordinator implements broker.TokenSource for one trading account.
type Coordinator struct {
	api   TokenAPI
	creds model.Credentials
	log   *slog.Logger

	now func() time.Time // injectable for tests

	// OnRefresh observes every outbound token request (optional).
	OnRefresh func()

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	pending   *inflight
}

type inflight struct {
	done  chan struct{}
	token string
	err   error
}

// NewCoordinator creates a token coordinator for the given credentials.
func NewCoordinator(api TokenAPI, creds model.Credentials, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		api:   api,
		creds: creds,
		log:   log,
		now:   time.Now,
	}
}

// ValidToken returns the cached token if it has more than refreshMargin of
// validity left, otherwise joins or starts a single-flight refresh.
func (c *Coordinator) ValidToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.expiresAt.Sub(c.now()) > refreshMargin {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	return c.refreshLocked(ctx)
}

// ForceRefresh bypasses the cache check entirely and refreshes the token.
// Concurrent forced refreshes still collapse into one outbound request.
func (c *Coordinator) ForceRefresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	return c.refreshLocked(ctx)
}

// refreshLocked joins an in-flight refresh or starts one. Called with c.mu
// held; always releases it.
func (c *Coordinator) refreshLocked(ctx context.Context) (string, error) {
	if p := c.pending; p != nil {
		c.mu.Unlock()
		select {
		case <-p.done:
			return p.token, p.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	p := &inflight{done: make(chan struct{})}
	c.pending = p
	c.mu.Unlock()

	if c.OnRefresh != nil {
		c.OnRefresh()
	}
	grant, err := c.requestToken(ctx)

	c.mu.Lock()
	c.pending = nil
	if err == nil {
		c.token = grant.Token
		c.expiresAt = grant.ExpiresAt
		p.token = grant.Token
	} else {
		p.err = err
	}
	c.mu.Unlock()

	close(p.done)
	if err != nil {
		c.log.Error("token refresh failed",
			slog.String("account", c.creds.AccountID),
			slog.String("error", err.Error()))
		return "", err
	}
	c.log.Info("token refreshed",
		slog.String("account", c.creds.AccountID),
		slog.Time("expires_at", grant.ExpiresAt))
	return grant.Token, nil
}

// requestToken performs one outbound token request: the Ed25519 signed flow
// when a private key is configured, otherwise the TOTP session login.
func (c *Coordinator) requestToken(ctx context.Context) (broker.TokenGrant, error) {
	if len(c.creds.PrivateKey) == ed25519.PrivateKeySize {
		req, err := SignTokenRequest(c.creds.ClientID, c.creds.PrivateKey, c.now())
		if err != nil {
			return broker.TokenGrant{}, err
		}
		return c.api.GenerateToken(ctx, req)
	}

	if c.creds.TOTPSecret == "" {
		return broker.TokenGrant{}, fmt.Errorf("auth: account %s has neither signing key nor TOTP secret", c.creds.AccountID)
	}
	code, err := totp.GenerateCode(c.creds.TOTPSecret, c.now())
	if err != nil {
		return broker.TokenGrant{}, fmt.Errorf("auth: generate totp: %w", err)
	}
	return c.api.GenerateSession(ctx, broker.SessionRequest{
		ClientCode: c.creds.ClientID,
		Password:   c.creds.Password,
		TOTP:       code,
	})
}

// SignTokenRequest builds the signed token payload: an Ed25519 signature
// over clientID + epoch-millis, base64-encoded.
func SignTokenRequest(clientID string, key ed25519.PrivateKey, at time.Time) (broker.TokenRequest, error) {
	if len(key) != ed25519.PrivateKeySize {
		return broker.TokenRequest{}, fmt.Errorf("auth: bad private key length %d", len(key))
	}
	millis := at.UnixMilli()
	msg := clientID + strconv.FormatInt(millis, 10)
	sig := ed25519.Sign(key, []byte(msg))
	return broker.TokenRequest{
		ClientID:  clientID,
		Timestamp: millis,
		Signature: base64.StdEncoding.EncodeToString(sig),
	}, nil
}
