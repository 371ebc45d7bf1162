// Command propctl signs in to a PropEase API and manages the account from a
// terminal. The session is kept in the user's config directory between runs.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/MaxtDesign/MaxtPM/internal/client"
)

const defaultAPIURL = "http://localhost:3001/api"

type env struct {
	client *client.Client
	stdin  *bufio.Reader
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"login":           {"sign in with email and password", runLogin},
	"register":        {"create an account, optionally with a company", runRegister},
	"logout":          {"end this session", runLogout},
	"logout-all":      {"end every session of the account", runLogoutAll},
	"forgot-password": {"request a password reset email", runForgotPassword},
	"reset-password":  {"set a new password with a reset token", runResetPassword},
	"change-password": {"change the password of the signed-in account", runChangePassword},
	"whoami":          {"print the signed-in user", runWhoami},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "propctl:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("propctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	apiURL := global.String("api", envOr("PROPCTL_API_URL", defaultAPIURL), "API base URL")
	sessionPath := global.String("session", "", "session file (default: <user config dir>/propease/session.json)")
	verbose := global.BoolP("verbose", "v", false, "log HTTP and session details")
	global.Usage = func() { usage(stderr, global) }
	if err := global.Parse(args); err != nil {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		usage(stderr, global)
		return flag.ErrHelp
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", rest[0])
	}

	path := *sessionPath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("locate config dir: %w", err)
		}
		path = filepath.Join(dir, "propease", "session.json")
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	c, err := client.New(client.Options{
		BaseURL: *apiURL,
		Store:   client.NewFileStore(path),
		Notifier: client.NotifierFunc(func(n client.Notice) {
			fmt.Fprintf(stderr, "[%s] %s\n", n.Level, n.Message)
		}),
		OnLoggedOut: func() { logger.Debug().Str("session", path).Msg("session cleared") },
		Log:         logger,
	})
	if err != nil {
		return err
	}
	if _, err := c.Init(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	return cmd.run(ctx, &env{client: c, stdin: bufio.NewReader(stdin), stdout: stdout, stderr: stderr}, rest[1:])
}

func usage(w io.Writer, global *flag.FlagSet) {
	fmt.Fprintln(w, "usage: propctl [flags] <command> [command flags]")
	fmt.Fprintln(w, "\ncommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-16s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w, "\nflags:")
	fmt.Fprint(w, global.FlagUsages())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// secret returns value, or reads one line from stdin when value is empty.
func (e *env) secret(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(e.stderr, "%s: ", prompt)
	line, err := e.stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(prompt), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (e *env) printUser(user *client.User) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(user)
}

func runLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlags("login")
	email := fs.StringP("email", "e", "", "account email")
	password := fs.StringP("password", "p", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("login: --email is required")
	}
	pw, err := e.secret(*password, "Password")
	if err != nil {
		return err
	}
	user, err := e.client.Login(ctx, *email, pw)
	if err != nil {
		return err
	}
	return e.printUser(user)
}

func runRegister(ctx context.Context, e *env, args []string) error {
	fs := newFlags("register")
	var req client.RegisterRequest
	fs.StringVarP(&req.Email, "email", "e", "", "account email")
	fs.StringVar(&req.FirstName, "first-name", "", "first name")
	fs.StringVar(&req.LastName, "last-name", "", "last name")
	password := fs.StringP("password", "p", "", "password (prompted when empty)")
	fs.StringVar(&req.CompanyName, "company", "", "company name; needs the address flags")
	fs.StringVar(&req.CompanyPhone, "company-phone", "", "company phone")
	fs.StringVar(&req.CompanyEmail, "company-email", "", "company email")
	var addr client.Address
	fs.StringVar(&addr.Street, "street", "", "company street")
	fs.StringVar(&addr.City, "city", "", "company city")
	fs.StringVar(&addr.State, "state", "", "company state")
	fs.StringVar(&addr.ZipCode, "zip", "", "company zip code")
	fs.StringVar(&addr.Country, "country", "", "company country")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw, err := e.secret(*password, "Password")
	if err != nil {
		return err
	}
	req.Password, req.ConfirmPassword = pw, pw
	if addr != (client.Address{}) {
		req.CompanyAddress = &addr
	}

	user, err := e.client.Register(ctx, req)
	if err != nil {
		return err
	}
	return e.printUser(user)
}

func runLogout(ctx context.Context, e *env, _ []string) error {
	return e.client.Logout(ctx)
}

func runLogoutAll(ctx context.Context, e *env, _ []string) error {
	if !e.client.IsAuthenticated() {
		return errors.New("not signed in")
	}
	return e.client.LogoutAll(ctx)
}

func runForgotPassword(ctx context.Context, e *env, args []string) error {
	fs := newFlags("forgot-password")
	email := fs.StringP("email", "e", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("forgot-password: --email is required")
	}
	return e.client.ForgotPassword(ctx, *email)
}

func runResetPassword(ctx context.Context, e *env, args []string) error {
	fs := newFlags("reset-password")
	token := fs.StringP("token", "t", "", "reset token from the email")
	password := fs.StringP("password", "p", "", "new password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return errors.New("reset-password: --token is required")
	}
	pw, err := e.secret(*password, "New password")
	if err != nil {
		return err
	}
	return e.client.ResetPassword(ctx, *token, pw, pw)
}

func runChangePassword(ctx context.Context, e *env, args []string) error {
	fs := newFlags("change-password")
	current := fs.String("current", "", "current password (prompted when empty)")
	next := fs.String("new", "", "new password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !e.client.IsAuthenticated() {
		return errors.New("not signed in")
	}
	cur, err := e.secret(*current, "Current password")
	if err != nil {
		return err
	}
	pw, err := e.secret(*next, "New password")
	if err != nil {
		return err
	}
	return e.client.ChangePassword(ctx, cur, pw, pw)
}

func runWhoami(ctx context.Context, e *env, _ []string) error {
	if !e.client.IsAuthenticated() {
		return errors.New("not signed in")
	}
	user, err := e.client.RefreshUser(ctx)
	if err != nil {
		return err
	}
	return e.printUser(user)
}
