package middleware

import (
	"net/http"
	"time"

	goToken "github.com/MrEthical07/goToken"
)

// RequestTime records when the request arrived. Mount it outermost so the
// stamp is taken before any other handler runs.
func RequestTime(next http.Handler) http.Handler {
	return requestTime(time.Now, next)
}

func requestTime(now func() time.Time, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !goToken.RequestTimeFromContext(r.Context()).IsZero() {
			next.ServeHTTP(w, r)
			return
		}
		ctx := goToken.WithRequestTime(r.Context(), now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
