package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/utils"
)

const csrfCookieName = "_csrf"

// GetCSRFToken issues a double-submit CSRF token: the raw token goes into a
// cookie and the response body, and state-changing requests must echo it in
// the X-CSRF-Token header.
func GetCSRFToken(w http.ResponseWriter, r *http.Request) {
	token := generateRandomToken()

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		MaxAge:   3600,
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-CSRF-Token", token)
	json.NewEncoder(w).Encode(map[string]string{"csrfToken": token})
}

// CSRFMiddleware rejects state-changing requests whose X-CSRF-Token header
// does not match the CSRF cookie.
func CSRFMiddleware(authKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(csrfCookieName)
			if err != nil || cookie.Value == "" {
				logger.L.Warn("CSRF cookie missing", "path", r.URL.Path, "method", r.Method)
				utils.SendJSONError(w, "CSRF token missing", http.StatusForbidden)
				return
			}

			header := r.Header.Get("X-CSRF-Token")
			if !tokensMatch(authKey, cookie.Value, header) {
				logger.L.Warn("CSRF token mismatch", "path", r.URL.Path, "method", r.Method)
				utils.SendJSONError(w, "CSRF token invalid", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// tokensMatch compares the two token presentations in constant time, keyed
// so the comparison itself leaks nothing about the raw values.
func tokensMatch(authKey []byte, cookieToken, headerToken string) bool {
	if cookieToken == "" || headerToken == "" {
		return false
	}
	mac := hmac.New(sha256.New, authKey)
	mac.Write([]byte(cookieToken))
	cookieMAC := mac.Sum(nil)

	mac = hmac.New(sha256.New, authKey)
	mac.Write([]byte(headerToken))
	headerMAC := mac.Sum(nil)

	return hmac.Equal(cookieMAC, headerMAC)
}

func generateRandomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		logger.L.Error("Failed to generate CSRF token", "error", err)
		return ""
	}
	return base64.URLEncoding.EncodeToString(b)
}
