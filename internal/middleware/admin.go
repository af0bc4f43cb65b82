package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminAuth пропускает только запросы персонала склада с токеном в заголовке Authorization.
type AdminAuth struct {
	token []byte
}

// NewAdminAuth создаёт проверку токена. С пустым токеном все запросы отклоняются.
func NewAdminAuth(token string) *AdminAuth {
	return &AdminAuth{token: []byte(token)}
}

// Middleware проверяет заголовок "Authorization: Bearer <token>".
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.token) == 0 {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), a.token) != 1 {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
