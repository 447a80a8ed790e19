package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCertTTL     = time.Hour
	defaultFetchTries  = 3
	maxCertsBodyBytes  = 1 << 20
	defaultCertTimeout = 10 * time.Second
	refreshTimeout     = 30 * time.Second
	staleRetryInterval = time.Minute
)

// KeySource resolves the public keys currently used to sign tokens, indexed by key id.
type KeySource interface {
	Keys(ctx context.Context) (map[string]*rsa.PublicKey, error)
}

// CertSource fetches a JSON object of PEM encoded x509 certificates keyed by kid
// and caches it for the max-age announced by the endpoint.
type CertSource struct {
	url      string
	client   *http.Client
	attempts uint
	now      func() time.Time
	refresh  singleflight.Group

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

// NewCertSource returns a CertSource for url. A nil client gets a 10s timeout client.
func NewCertSource(url string, client *http.Client) *CertSource {
	if client == nil {
		client = &http.Client{Timeout: defaultCertTimeout}
	}
	return &CertSource{
		url:      strings.TrimSpace(url),
		client:   client,
		attempts: defaultFetchTries,
		now:      time.Now,
	}
}

// Keys returns the cached keys. Expired keys are served while a single
// background refresh runs; callers with nothing cached wait for that refresh.
func (s *CertSource) Keys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	s.mu.Lock()
	keys, fresh := s.keys, s.keys != nil && s.now().Before(s.expires)
	s.mu.Unlock()
	if fresh {
		return keys, nil
	}

	ch := s.refresh.DoChan("keys", func() (any, error) {
		return s.reload(context.WithoutCancel(ctx))
	})
	if keys != nil {
		return keys, nil
	}
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]*rsa.PublicKey), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *CertSource) reload(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	s.mu.Lock()
	if s.keys != nil && s.now().Before(s.expires) {
		keys := s.keys
		s.mu.Unlock()
		return keys, nil
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = time.Second
	result, err := backoff.Retry(ctx, func() (fetchResult, error) {
		return s.fetch(ctx)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(s.attempts))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.keys != nil {
			// keep serving the stale set, try again later
			s.expires = s.now().Add(staleRetryInterval)
		}
		return nil, fmt.Errorf("fetch signing keys: %w", err)
	}
	s.keys = result.keys
	s.expires = s.now().Add(result.ttl)
	return result.keys, nil
}

type fetchResult struct {
	keys map[string]*rsa.PublicKey
	ttl  time.Duration
}

func (s *CertSource) fetch(ctx context.Context) (fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fetchResult{}, backoff.Permanent(err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fetchResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fetchResult{}, fmt.Errorf("certificate endpoint returned %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return fetchResult{}, backoff.Permanent(fmt.Errorf("certificate endpoint returned %s", resp.Status))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCertsBodyBytes))
	if err != nil {
		return fetchResult{}, err
	}
	var certs map[string]string
	if err := json.Unmarshal(body, &certs); err != nil {
		return fetchResult{}, backoff.Permanent(fmt.Errorf("decode certificates: %w", err))
	}
	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		key, err := jwtlib.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return fetchResult{}, backoff.Permanent(fmt.Errorf("parse certificate %s: %w", kid, err))
		}
		keys[kid] = key
	}
	if len(keys) == 0 {
		return fetchResult{}, backoff.Permanent(errors.New("certificate endpoint returned no keys"))
	}
	return fetchResult{keys: keys, ttl: maxAge(resp.Header.Get("Cache-Control"))}, nil
}

func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		directive = strings.TrimSpace(directive)
		value, ok := strings.CutPrefix(strings.ToLower(directive), "max-age=")
		if !ok {
			continue
		}
		seconds, err := strconv.Atoi(value)
		if err != nil || seconds <= 0 {
			break
		}
		return time.Duration(seconds) * time.Second
	}
	return defaultCertTTL
}
