package cloud

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const pathNewUserToken = "/token/json/2/user/new"

// maxTokenBody bounds the session token response.
const maxTokenBody = 64 * 1024

// ObtainUserToken exchanges the device token for a session token. It returns
// false without an error when the exchange is refused or times out; the
// caller decides what to do next. Only transport faults are returned as
// errors.
func (c *Client) ObtainUserToken(ctx context.Context) (bool, error) {
	c.setAuth(authDevice)
	resp, err := c.do(ctx, http.MethodPost, c.webappURL+pathNewUserToken, nil, "")
	c.clearAuth()

	if err != nil {
		if errors.Is(err, ErrTimeout) {
			c.logger.Error("token exchange timed out")
			return false, nil
		}

		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("unable to retrieve new user token with provided device token",
			slog.Int("status", resp.StatusCode),
			slog.String("body", readErrorBody(resp)),
		)

		return false, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		err = c.classifyBodyError(ctx, "token response", err)
		if errors.Is(err, ErrTimeout) {
			c.logger.Error("token exchange timed out")
			return false, nil
		}

		return false, err
	}

	token := strings.TrimSpace(string(body))
	if token == "" {
		c.logger.Error("token exchange returned an empty token")
		return false, nil
	}

	c.userToken = bearer(token)
	c.userToken.Expiry = tokenExpiry(token)

	attrs := []any{}
	if !c.userToken.Expiry.IsZero() {
		attrs = append(attrs, slog.Time("expiry", c.userToken.Expiry))
	}

	c.logger.Info("obtained session token", attrs...)

	return true, nil
}

// tokenExpiry reads the exp claim of a JWT session token without verifying
// its signature. Non-JWT tokens have no known expiry.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}

	return exp.Time
}
