package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MaxtDesign/MaxtPM/internal/ratelimit"
	"github.com/MaxtDesign/MaxtPM/internal/response"
)

// KeyFunc picks the bucket a request is counted in.
type KeyFunc func(c *gin.Context) string

func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByIPAndEmail reads the email field of a JSON body and puts the body back
// for the handler.
func KeyByIPAndEmail(c *gin.Context) string {
	email := "unknown"
	if c.Request.Body != nil {
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
		if err == nil {
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			var body struct {
				Email string `json:"email"`
			}
			if json.Unmarshal(raw, &body) == nil && body.Email != "" {
				email = strings.ToLower(strings.TrimSpace(body.Email))
			}
		}
	}
	return c.ClientIP() + "-" + email
}

// RateLimit refuses requests once rule's budget of failed attempts is used
// up. Every request reserves an attempt before it runs, and the attempt is
// refunded when the response status is below 400. Limiter errors let the
// request through.
func RateLimit(limiter ratelimit.Limiter, rule ratelimit.Rule, keyFn KeyFunc, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		ctx := c.Request.Context()

		st, err := limiter.Reserve(ctx, rule, key)
		if err != nil {
			log.Warn().Err(err).Str("policy", rule.Name).Msg("rate limiter unavailable")
			c.Next()
			return
		}

		setRateHeaders(c, st)
		if !st.Allowed {
			c.Header("Retry-After", strconv.Itoa(ceilSeconds(st.Reset)))
			response.Fail(c, http.StatusTooManyRequests, rule.Code, rule.Message, nil)
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		// The client may be gone by now; the refund must still land.
		if err := limiter.Refund(context.WithoutCancel(ctx), rule, key); err != nil {
			log.Warn().Err(err).Str("policy", rule.Name).Msg("refund rate limit attempt")
		}
	}
}

func setRateHeaders(c *gin.Context, st ratelimit.Status) {
	c.Header("RateLimit-Limit", strconv.Itoa(st.Limit))
	c.Header("RateLimit-Remaining", strconv.Itoa(st.Remaining))
	c.Header("RateLimit-Reset", strconv.Itoa(ceilSeconds(st.Reset)))
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
