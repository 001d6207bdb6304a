package api

import (
	"time"

	"github.com/valyala/fasthttp"
)

const sessionCookieName = "jwt"

// setSessionCookie stores the token in an HttpOnly, strict same-site cookie
func (s *Server) setSessionCookie(ctx *fasthttp.RequestCtx, token string) {
	cookie := s.sessionCookie()
	defer fasthttp.ReleaseCookie(cookie)

	cookie.SetValue(token)
	ttl := s.tokens.TTL()
	cookie.SetMaxAge(int(ttl / time.Second))
	cookie.SetExpire(time.Now().Add(ttl))

	ctx.Response.Header.SetCookie(cookie)
}

// clearSessionCookie expires the session cookie in the browser
func (s *Server) clearSessionCookie(ctx *fasthttp.RequestCtx) {
	cookie := s.sessionCookie()
	defer fasthttp.ReleaseCookie(cookie)

	cookie.SetValue("")
	cookie.SetExpire(fasthttp.CookieExpireDelete)

	ctx.Response.Header.SetCookie(cookie)
}

func (s *Server) sessionCookie() *fasthttp.Cookie {
	cookie := fasthttp.AcquireCookie()
	cookie.SetKey(sessionCookieName)
	cookie.SetPath("/")
	cookie.SetHTTPOnly(true)
	cookie.SetSameSite(fasthttp.CookieSameSiteStrictMode)
	cookie.SetSecure(s.config.Server.IsProduction())
	return cookie
}
