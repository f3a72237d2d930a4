// Package breach performs best-effort lookups of passwords against a
// breached-password corpus using the k-anonymity range protocol: only the
// first five hex characters of the password's SHA-1 digest ever leave the
// process. Results never feed back into authentication decisions.
package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-id/authcore/internal/infra/config"
	authredis "github.com/meridian-id/authcore/internal/infra/redis"
	"github.com/meridian-id/authcore/internal/infra/telemetry"
)

const (
	rangePrefixLen = 5
	cacheKeyPrefix = "authcore:breach:range:"
	maxRangeBody   = 1 << 20
)

// Checker implements port.BreachChecker against an HIBP-compatible range
// endpoint. All failures are logged and swallowed; the caller never waits
// on or observes the outcome.
type Checker struct {
	cfg     config.BreachSettings
	client  *http.Client
	cache   *authredis.Client
	logger  *zap.Logger
	metrics *telemetry.Metrics
	sem     chan struct{}
}

// NewChecker constructs a breach checker. The redis cache is optional;
// when nil every lookup goes to the remote endpoint.
func NewChecker(cfg config.BreachSettings, cache *authredis.Client, metrics *telemetry.Metrics, logger *zap.Logger) *Checker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	return &Checker{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   cache,
		logger:  logger,
		metrics: metrics,
		sem:     make(chan struct{}, maxConcurrent),
	}
}

// CheckInBackground schedules a breach lookup and returns immediately.
// When the in-flight bound is reached the check is dropped rather than
// queued; the lookup is best-effort by contract.
func (c *Checker) CheckInBackground(password string) {
	if !c.cfg.Enabled || password == "" {
		return
	}

	select {
	case c.sem <- struct{}{}:
	default:
		c.metrics.ObserveBreachCheck("skipped")
		return
	}

	go func() {
		defer func() { <-c.sem }()
		c.check(password)
	}()
}

func (c *Checker) check(password string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:rangePrefixLen], digest[rangePrefixLen:]

	body, err := c.fetchRange(ctx, prefix)
	if err != nil {
		c.metrics.ObserveBreachCheck("error")
		c.logger.Warn("breach lookup failed", zap.Error(err))
		return
	}

	count, found := scanRange(body, suffix)
	if !found {
		c.metrics.ObserveBreachCheck("miss")
		return
	}

	c.metrics.ObserveBreachCheck("hit")
	c.logger.Warn("password present in breach corpus", zap.Int64("corpus_count", count))
}

func (c *Checker) fetchRange(ctx context.Context, prefix string) (string, error) {
	if cached, ok := c.cachedRange(ctx, prefix); ok {
		return cached, nil
	}

	url := strings.TrimSuffix(c.cfg.Endpoint, "/") + "/" + prefix
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build range request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("query breach range: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("breach range endpoint returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRangeBody))
	if err != nil {
		return "", fmt.Errorf("read range response: %w", err)
	}

	body := string(raw)
	c.storeRange(ctx, prefix, body)
	return body, nil
}

func (c *Checker) cachedRange(ctx context.Context, prefix string) (string, bool) {
	if c.cache == nil {
		return "", false
	}

	val, err := c.cache.Client().Get(ctx, cacheKeyPrefix+prefix).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (c *Checker) storeRange(ctx context.Context, prefix, body string) {
	if c.cache == nil || c.cfg.CacheTTL <= 0 {
		return
	}

	if err := c.cache.Client().Set(ctx, cacheKeyPrefix+prefix, body, c.cfg.CacheTTL).Err(); err != nil {
		c.logger.Debug("cache breach range failed", zap.Error(err))
	}
}

// scanRange looks for the digest suffix in a "SUFFIX:COUNT" range body.
func scanRange(body, suffix string) (int64, bool) {
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		candidate, countField, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if !strings.EqualFold(candidate, suffix) {
			continue
		}

		var count int64
		if _, err := fmt.Sscanf(strings.TrimSpace(countField), "%d", &count); err != nil {
			count = 0
		}
		return count, true
	}
	return 0, false
}
