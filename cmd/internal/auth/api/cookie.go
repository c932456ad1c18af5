package authapi

import (
	"net/http"
	"strings"
	"time"
)

// refreshCookie builds the HttpOnly cookie carrying the refresh credential.
// A zero expiry produces the deletion form.
func (h *Handler) refreshCookie(value string, exp time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     h.cfg.RefreshCookieName,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	}
	if exp.IsZero() {
		c.Value = ""
		c.Expires = time.Unix(0, 0).UTC()
		c.MaxAge = -1
	}
	return c
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, value string, exp time.Time) {
	http.SetCookie(w, h.refreshCookie(value, exp))
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, h.refreshCookie("", time.Time{}))
}

func (h *Handler) refreshTokenFromCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(h.cfg.RefreshCookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	return v, v != ""
}
