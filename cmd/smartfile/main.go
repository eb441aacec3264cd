// Command smartfile is a small command-line client for the SmartFile API.
//
// Credentials come from the config file (default ~/.smartfile/config.yaml)
// and the environment (API_KEY, API_PASS, SMARTFILE_* variables).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/smartfile/smartfile_sdk_go/internal/config"
	"github.com/smartfile/smartfile_sdk_go/internal/logger"
	"github.com/smartfile/smartfile_sdk_go/pkg/smartfile"
)

const usage = `usage: smartfile [-config path] [-auth basic|oauth] [-v] <command> [args]

commands:
  ping                 check the API is reachable
  ls [-children] path  show path metadata, optionally with directory entries
  mkdir path           create a directory
  put file [dir]       upload a local file
  get path             download a file into the download directory
  mv src dst           move src into the dst directory
  rm path...           remove files or directories
  oauth                run the OAuth authorization flow and save the tokens
  useradd              create a user (prompts for details)
`

var errUsage = errors.New("invalid usage")

// app carries what every command needs.
type app struct {
	configPath string
	client     *smartfile.Client
	log        *logger.Logger
	stdin      io.Reader
	stdout     io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "smartfile: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("smartfile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", config.DefaultPath(), "path to the YAML config file")
	authMode := fs.String("auth", "", "authentication mode: basic or oauth")
	verbose := fs.Bool("v", false, "log every request")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *authMode != "" {
		cfg.Auth.Mode = strings.ToLower(*authMode)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})
	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}

	a := &app{
		configPath: *configPath,
		client:     client,
		log:        log,
		stdin:      stdin,
		stdout:     stdout,
	}
	return a.dispatch(ctx, fs.Arg(0), fs.Args()[1:])
}

func newClient(cfg *config.Config, log *logger.Logger) (*smartfile.Client, error) {
	opts := []smartfile.Option{smartfile.WithLogger(log.Zerolog())}
	if cfg.HTTP.ConnectTimeout > 0 {
		opts = append(opts, smartfile.WithConnectTimeout(cfg.HTTP.ConnectTimeout))
	}
	if cfg.HTTP.UserAgent != "" {
		opts = append(opts, smartfile.WithUserAgent(cfg.HTTP.UserAgent))
	}
	if cfg.HTTP.MaxRetries > 0 {
		opts = append(opts, smartfile.WithRetryPolicy(smartfile.RetryPolicy{MaxRetries: cfg.HTTP.MaxRetries}))
	}
	if cfg.HTTP.RateLimit > 0 {
		opts = append(opts, smartfile.WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.Burst))
	}
	if cfg.API.DownloadDir != "" {
		opts = append(opts, smartfile.WithDownloadDir(cfg.API.DownloadDir))
	}

	if cfg.Auth.Mode != config.AuthOAuth {
		return smartfile.NewBasic(cfg.API.URL, cfg.Auth.Key, cfg.Auth.Password, opts...)
	}
	if cfg.API.OAuthURL != "" {
		opts = append(opts, smartfile.WithOAuthBaseURL(cfg.API.OAuthURL))
	}
	if cfg.Auth.AccessToken != "" && cfg.Auth.AccessSecret != "" {
		opts = append(opts, smartfile.WithAccessToken(cfg.Auth.AccessToken, cfg.Auth.AccessSecret))
	}
	return smartfile.NewOAuth(cfg.API.URL, cfg.Auth.ClientToken, cfg.Auth.ClientSecret, opts...)
}

func (a *app) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "ping":
		return a.ping(ctx, args)
	case "ls":
		return a.ls(ctx, args)
	case "mkdir":
		return a.mkdir(ctx, args)
	case "put":
		return a.put(ctx, args)
	case "get":
		return a.get(ctx, args)
	case "mv":
		return a.mv(ctx, args)
	case "rm":
		return a.rm(ctx, args)
	case "oauth":
		return a.oauth(ctx, args)
	case "useradd":
		return a.useradd(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
}
