// Package proxy is the HTTP front end: a reverse proxy that consults the
// firewall kernel before forwarding anything to the protected backend.
package proxy

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/kernel"
	"github.com/coal/gatetrap/internal/policy"
	"github.com/coal/gatetrap/internal/visitor"
)

// GuardProxy is an HTTP reverse proxy with a firewall kernel in front.
type GuardProxy struct {
	kern    *kernel.Kernel
	cfg     config.ProxyConfig
	backend *url.URL
	proxy   *httputil.ReverseProxy
	logger  zerolog.Logger
}

// New creates a new GuardProxy.
func New(kern *kernel.Kernel, cfg config.ProxyConfig, logger zerolog.Logger) (*GuardProxy, error) {
	target, err := url.Parse(cfg.Backend)
	if err != nil {
		return nil, err
	}

	gp := &GuardProxy{
		kern:    kern,
		cfg:     cfg,
		backend: target,
		logger:  logger.With().Str("component", "proxy").Logger(),
	}

	gp.proxy = &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.Host = target.Host
		},
	}

	return gp, nil
}

// ServeHTTP handles incoming requests.
func (gp *GuardProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	v, mintedSession := gp.visit(r)

	decision, err := gp.kern.Handle(v)
	if err != nil {
		gp.logger.Error().Err(err).Str("ip", v.IP).Msg("pipeline failure")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	if mintedSession != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     gp.cfg.SessionCookie,
			Value:    mintedSession,
			Path:     "/",
			HttpOnly: true,
		})
	}
	for _, d := range decision.Directives {
		if d.ClearCookie != "" {
			http.SetCookie(w, &http.Cookie{Name: d.ClearCookie, Value: "", Path: "/", MaxAge: -1})
		}
	}

	gp.logger.Info().
		Str("request_id", decision.RequestID).
		Str("ip", v.IP).
		Str("verdict", decision.Verdict.String()).
		Int("reason", int(decision.Reason)).
		Msg("decision")

	switch decision.Verdict {
	case policy.VerdictAllow:
		gp.forward(w, r)
	case policy.VerdictTempDeny:
		writeChallengePage(w, decision)
	case policy.VerdictLimitSession:
		writeQueuePage(w, decision)
	default:
		writeDenyPage(w, decision)
	}
}

// visit builds the pipeline's view of the request. The second return value
// is a freshly minted session token when the client had none.
func (gp *GuardProxy) visit(r *http.Request) (*visitor.Visit, string) {
	v := &visitor.Visit{
		IP:        gp.clientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
		Header:    r.Header,
	}

	minted := ""
	if c, err := r.Cookie(gp.cfg.SessionCookie); err == nil && c.Value != "" {
		v.SessionID = c.Value
	} else {
		minted = uuid.NewString()
		v.SessionID = minted
	}

	if c, err := r.Cookie(gp.kern.CookieName()); err == nil {
		v.HasCookie = true
		v.CookieValue = c.Value
	}

	return v, minted
}

// clientIP extracts the visitor identity. X-Forwarded-For is honored only
// when the proxy is configured to sit behind a trusted load balancer.
func (gp *GuardProxy) clientIP(r *http.Request) string {
	if gp.cfg.TrustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// forward proxies to the backend, injecting the JS cookie snippet into HTML
// responses when the cookie filter needs it set client-side.
func (gp *GuardProxy) forward(w http.ResponseWriter, r *http.Request) {
	if !gp.kern.CookieEnabled() {
		gp.proxy.ServeHTTP(w, r)
		return
	}

	recorder := &responseRecorder{
		header: make(http.Header),
		body:   &bytes.Buffer{},
		code:   http.StatusOK,
	}
	gp.proxy.ServeHTTP(recorder, r)

	body := recorder.body.Bytes()
	if strings.HasPrefix(recorder.header.Get("Content-Type"), "text/html") {
		body = injectCookieScript(body, gp.kern.CookieName(), gp.kern.CookieValue())
	}

	for k, vals := range recorder.header {
		w.Header()[k] = vals
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(recorder.code)
	w.Write(body)
}

// injectCookieScript plants the cookie-setting script before </body>, or
// appends it when no closing tag is found.
func injectCookieScript(body []byte, name, value string) []byte {
	script := []byte("<script>document.cookie=\"" + name + "=" + value + ";path=/\";</script>")
	idx := bytes.LastIndex(body, []byte("</body>"))
	if idx < 0 {
		return append(body, script...)
	}
	out := make([]byte, 0, len(body)+len(script))
	out = append(out, body[:idx]...)
	out = append(out, script...)
	out = append(out, body[idx:]...)
	return out
}

// responseRecorder captures the backend response for rewriting.
type responseRecorder struct {
	header http.Header
	body   *bytes.Buffer
	code   int
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) Write(b []byte) (int, error) { return r.body.Write(b) }

func (r *responseRecorder) WriteHeader(code int) { r.code = code }
