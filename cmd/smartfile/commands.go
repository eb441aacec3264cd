package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/smartfile/smartfile_sdk_go/internal/config"
	"github.com/smartfile/smartfile_sdk_go/pkg/smartfile"
)

func (a *app) ping(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: ping takes no arguments", errUsage)
	}
	out, err := a.client.Ping(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(out)
}

func (a *app) ls(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	children := fs.Bool("children", false, "include directory entries")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	target := "/"
	switch fs.NArg() {
	case 0:
	case 1:
		target = fs.Arg(0)
	default:
		return fmt.Errorf("%w: ls takes one path", errUsage)
	}
	out, err := a.client.Info(ctx, target, *children)
	if err != nil {
		return err
	}
	return a.printJSON(out)
}

func (a *app) mkdir(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: mkdir takes one path", errUsage)
	}
	out, err := a.client.Mkdir(ctx, args[0])
	if err != nil {
		return err
	}
	return a.printJSON(out)
}

func (a *app) put(ctx context.Context, args []string) error {
	var dir string
	switch len(args) {
	case 1:
	case 2:
		dir = args[1]
	default:
		return fmt.Errorf("%w: put takes a file and an optional directory", errUsage)
	}
	out, err := a.client.UploadTo(ctx, args[0], dir)
	if err != nil {
		return err
	}
	return a.printJSON(out)
}

func (a *app) get(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: get takes one path", errUsage)
	}
	local, err := a.client.Download(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, local)
	return nil
}

func (a *app) mv(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: mv takes a source and a destination", errUsage)
	}
	out, err := a.client.Move(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return a.printJSON(out)
}

func (a *app) rm(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: rm takes at least one path", errUsage)
	}
	out, err := a.client.Remove(ctx, args...)
	if err != nil {
		return err
	}
	return a.printJSON(out)
}

// oauth walks the user through the three-legged flow and stores the
// resulting access pair in the config file.
func (a *app) oauth(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: oauth takes no arguments", errUsage)
	}
	o := a.client.OAuth()
	if o == nil {
		return errors.New("oauth: run with -auth oauth and configure client_token and client_secret")
	}
	if err := o.RequestToken(ctx, ""); err != nil {
		return err
	}
	authURL, err := o.AuthorizationURL()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Visit this URL to authorize access:")
	fmt.Fprintln(a.stdout, authURL)

	in := bufio.NewScanner(a.stdin)
	verifier, err := prompt(in, a.stdout, "Verifier: ")
	if err != nil {
		return err
	}
	if err := o.AccessToken(ctx, verifier); err != nil {
		return err
	}
	creds, ok := o.Credentials()
	if !ok {
		return errors.New("oauth: no access token after exchange")
	}

	if err := config.SaveAccessToken(a.configPath, creds.Token, creds.Secret); err != nil {
		return err
	}
	a.log.InfoWith("oauth: access token saved", map[string]interface{}{"config": a.configPath})
	fmt.Fprintln(a.stdout, "Access token saved to", a.configPath)
	return nil
}

func (a *app) useradd(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: useradd takes no arguments", errUsage)
	}
	in := bufio.NewScanner(a.stdin)
	var u smartfile.NewUser
	fields := []struct {
		label string
		dst   *string
	}{
		{"Full name: ", &u.Name},
		{"Username: ", &u.Username},
		{"Password: ", &u.Password},
		{"Email: ", &u.Email},
	}
	for _, f := range fields {
		v, err := prompt(in, a.stdout, f.label)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	out, err := a.client.CreateUser(ctx, u)
	if err != nil {
		return err
	}
	return a.printJSON(out)
}

func prompt(in *bufio.Scanner, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	if !in.Scan() {
		if err := in.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("no input for %q", strings.TrimSpace(label))
	}
	return strings.TrimSpace(in.Text()), nil
}

func (a *app) printJSON(v map[string]any) error {
	if v == nil {
		return nil
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
