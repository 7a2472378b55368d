package router

import (
	"net/http"
	"strings"

	"BackofficeAPI/internal/config"

	"github.com/rs/cors"
)

// newCORS builds the CORS middleware from config. allow_origin is "*" or a
// comma-separated list of origins; an empty value means "*".
func newCORS(cfg config.CORSConfig) *cors.Cors {
	opts := cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           86400,
	}

	wildcard := false
	for _, o := range strings.Split(cfg.AllowOrigin, ",") {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			wildcard = true
		default:
			opts.AllowedOrigins = append(opts.AllowedOrigins, o)
		}
	}
	if wildcard || len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = nil
		// browsers reject "*" on credentialed requests, so echo the origin
		if cfg.AllowCredentials {
			opts.AllowOriginFunc = func(string) bool { return true }
		}
	}
	return cors.New(opts)
}
