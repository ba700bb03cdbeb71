package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	goToken "github.com/MrEthical07/goToken"
)

type resultContextKey struct{}

// RejectionCodeHeader carries the numeric rejection code on 401 responses.
const RejectionCodeHeader = "X-Token-Rejection"

// ResultFromContext returns the token accepted by [Guard].
func ResultFromContext(ctx context.Context) (*goToken.Result, bool) {
	res, ok := ctx.Value(resultContextKey{}).(*goToken.Result)
	return res, ok && res != nil
}

// PayloadFromContext decodes the accepted token's payload into out.
func PayloadFromContext(ctx context.Context, out any) error {
	res, ok := ResultFromContext(ctx)
	if !ok {
		return goToken.ErrInvalidToken
	}
	return res.Decode(out)
}

// Guard rejects requests whose bearer token does not validate against the
// request with opts applied. Rejections answer 401 with the code in
// [RejectionCodeHeader]; operational failures answer 503.
func Guard(engine *goToken.Engine, opts goToken.Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.ForRequest(goToken.HTTPRequest(r)).WithOptions(opts).Validate(r.Context(), token)
			if err != nil {
				if code := goToken.CodeOf(err); code != 0 {
					w.Header().Set(RejectionCodeHeader, strconv.Itoa(int(code)))
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				if errors.Is(err, goToken.ErrEngineNotReady) {
					http.Error(w, "unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), resultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAudience returns [Guard] expecting audience.
func RequireAudience(engine *goToken.Engine, audience string) func(http.Handler) http.Handler {
	return Guard(engine, goToken.Options{}.WithAudience(audience))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
