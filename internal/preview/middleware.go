package preview

import (
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/tinycam/internal/logging"
)

// httpLoggingMiddleware logs requests at a level chosen by status code.
func httpLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	attrs := []slog.Attr{
		slog.String("method", ctx.Method()),
		slog.String("path", ctx.URL().Path),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}

	next(ctx)

	status := ctx.Status()
	attrs = append(attrs, slog.Int("status", status), slog.Duration("duration", time.Since(start)))

	level := slog.LevelInfo
	switch {
	case ctx.Method() == http.MethodGet && status < 400:
		level = slog.LevelDebug
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	logger.LogAttrs(ctx.Context(), level, "HTTP request completed", attrs...)
}

// corsMiddleware allows browser pages on other origins to use the API.
func corsMiddleware(ctx huma.Context, next func(huma.Context)) {
	ctx.SetHeader("Access-Control-Allow-Origin", "*")
	ctx.SetHeader("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	ctx.SetHeader("Access-Control-Allow-Headers", "Content-Type, Authorization")
	next(ctx)
}

// basicAuthMiddleware protects operations that declare a security
// requirement.
func basicAuthMiddleware(api huma.API, username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		if !checkBasicAuth(ctx.Header("Authorization"), username, password) {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="tinycam"`)
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "Authentication required")
			return
		}
		next(ctx)
	}
}

// checkBasicAuth validates a "Basic <credentials>" header value.
func checkBasicAuth(header, username, password string) bool {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return false
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	return ok &&
		subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1 &&
		subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
}

// withAuth returns the security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{{"basicAuth": {}}}
}

// wrapAuth applies basic auth to plain handlers mounted beside the API.
func wrapAuth(h http.Handler, username, password string) http.Handler {
	if username == "" || password == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !checkBasicAuth(r.Header.Get("Authorization"), username, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="tinycam"`)
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}
