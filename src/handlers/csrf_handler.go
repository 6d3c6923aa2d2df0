package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/username/bankfolio/backend/src/logger"
	"github.com/username/bankfolio/backend/src/utils"
)

const csrfCookieName = "_csrf_token"

// GetCSRFToken issues a double-submit CSRF token: the same value goes into a
// cookie and the response body; mutating requests must echo it in the
// X-CSRF-Token header.
func GetCSRFToken(w http.ResponseWriter, r *http.Request) {
	token := generateRandomToken()

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		MaxAge:   3600,
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-CSRF-Token", token)
	json.NewEncoder(w).Encode(map[string]string{"csrfToken": token})
}

// CSRFMiddleware validates the double-submit token on mutating methods.
func CSRFMiddleware(authKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(csrfCookieName)
			if err != nil {
				utils.SendJSONError(w, "CSRF cookie missing", http.StatusForbidden)
				return
			}
			header := r.Header.Get("X-CSRF-Token")
			if header == "" || !tokensEqual(authKey, cookie.Value, header) {
				logger.L.Warn("CSRF token mismatch", "method", r.Method, "path", r.URL.Path)
				utils.SendJSONError(w, "CSRF token invalid", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// tokensEqual compares HMACs of the two tokens, keeping the comparison
// constant-time.
func tokensEqual(authKey []byte, a, b string) bool {
	macA := hmac.New(sha256.New, authKey)
	macA.Write([]byte(a))
	macB := hmac.New(sha256.New, authKey)
	macB.Write([]byte(b))
	return hmac.Equal(macA.Sum(nil), macB.Sum(nil))
}

func generateRandomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		logger.L.Error("Failed to generate CSRF token", "error", err)
		return ""
	}
	return base64.URLEncoding.EncodeToString(b)
}
