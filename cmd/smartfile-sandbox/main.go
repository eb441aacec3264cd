// Command smartfile-sandbox serves an in-memory SmartFile API for local
// development against the SDK and the smartfile CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/smartfile/smartfile_sdk_go/internal/logger"
	"github.com/smartfile/smartfile_sdk_go/pkg/smartfile/mock"
)

type failConfig struct {
	rate float64
	code int
}

const (
	apiURLEnv  = "SMARTFILE_API_URL"
	apiKeyEnv  = "API_KEY"
	apiPassEnv = "API_PASS"
)

func main() {
	addr := flag.String("addr", ":8787", "listen address")
	prefix := flag.String("prefix", mock.DefaultPrefix, "API mount point")
	seed := flag.String("seed", "", "path to YAML seed of files and users")
	key := flag.String("key", "sandbox", "API key accepted for Basic auth")
	pass := flag.String("pass", "sandbox", "API password accepted for Basic auth")
	clientToken := flag.String("client-token", "", "OAuth client token (empty disables OAuth)")
	clientSecret := flag.String("client-secret", "", "OAuth client secret")
	latency := flag.Duration("latency", 0, "artificial latency to inject per request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	rps := flag.Float64("rate", 0, "requests per second before answering 429 (0 disables)")
	burst := flag.Int("burst", 1, "burst size for -rate")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	log := logger.New(&logger.Config{Level: *logLevel, Format: "console", Output: os.Stderr})

	api := mock.New(mock.Options{
		Prefix:       *prefix,
		Key:          *key,
		Password:     *pass,
		ClientToken:  *clientToken,
		ClientSecret: *clientSecret,
	})
	if *seed != "" {
		doc, err := mock.LoadSeed(*seed)
		if err != nil {
			log.ErrorWith("load seed", err, nil)
			os.Exit(1)
		}
		if err := api.ApplySeed(doc); err != nil {
			log.ErrorWith("apply seed", err, nil)
			os.Exit(1)
		}
	}

	failCfg, err := parseFailConfig(*fail)
	if err != nil {
		log.ErrorWith("parse fail flag", err, nil)
		os.Exit(1)
	}

	var limiter *rate.Limiter
	if *rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(*rps), *burst)
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           newRouter(api, log, *latency, failCfg, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Infof("smartfile-sandbox listening on %s (prefix %s)", *addr, api.Prefix())
	host := *addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	fmt.Println()
	fmt.Printf("export %s=http://%s%s\n", apiURLEnv, host, api.Prefix())
	fmt.Printf("export %s=%s\n", apiKeyEnv, *key)
	fmt.Printf("export %s=%s\n", apiPassEnv, *pass)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.ErrorWith("server failed", err, nil)
		os.Exit(1)
	}
}

func newRouter(api http.Handler, log *logger.Logger, delay time.Duration, failCfg failConfig, limiter *rate.Limiter) http.Handler {
	chain := chi.Chain(
		middleware.RequestID,
		middleware.RealIP,
		accessLog(log),
		middleware.Recoverer,
	)
	if limiter != nil {
		chain = append(chain, rateLimit(limiter))
	}
	chain = append(chain, inject(delay, failCfg))
	return chain.Handler(api)
}

func accessLog(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLog := log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(reqLog.WithContext(r.Context())))
			reqLog.InfoWith("request", map[string]interface{}{
				"method":  r.Method,
				"path":    r.URL.Path,
				"status":  ww.Status(),
				"bytes":   ww.BytesWritten(),
				"elapsed": time.Since(start).String(),
			})
		})
	}
}

func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				logger.FromContext(r.Context()).Warn("request throttled")
				w.Header().Set("Retry-After", "1")
				http.Error(w, `{"detail":"Request was throttled."}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func inject(delay time.Duration, failCfg failConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-r.Context().Done():
					return
				}
			}
			if failCfg.rate > 0 && rand.Float64() < failCfg.rate {
				status := failCfg.code
				if status == 0 {
					status = http.StatusInternalServerError
				}
				logger.FromContext(r.Context()).With().Int("status", status).Logger().Warn("failure injected")
				http.Error(w, "failure injected", status)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseFailConfig(raw string) (failConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return failConfig{}, nil
	}
	cfg := failConfig{code: http.StatusInternalServerError}
	parts := strings.Split(raw, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			return failConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		switch strings.TrimSpace(keyVal[0]) {
		case "rate":
			val, err := strconv.ParseFloat(strings.TrimSpace(keyVal[1]), 64)
			if err != nil {
				return failConfig{}, err
			}
			if val < 0 || val > 1 {
				return failConfig{}, fmt.Errorf("fail rate %v out of range [0,1]", val)
			}
			cfg.rate = val
		case "code":
			val, err := strconv.Atoi(strings.TrimSpace(keyVal[1]))
			if err != nil {
				return failConfig{}, err
			}
			cfg.code = val
		default:
			return failConfig{}, fmt.Errorf("unknown fail key %q", keyVal[0])
		}
	}
	return cfg, nil
}
