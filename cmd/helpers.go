package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/user"
	"strings"

	"golang.org/x/term"

	"github.com/firefly-engineering/desklab/internal/app"
	"github.com/firefly-engineering/desklab/internal/authz"
	"github.com/firefly-engineering/desklab/internal/config"
	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
	"github.com/firefly-engineering/desklab/internal/health"
	"github.com/firefly-engineering/desklab/internal/logging"
)

// getApp returns the default application, building it from --config on
// first use.
func getApp(ctx context.Context) (*app.App, error) {
	if app.Default != nil {
		return app.Default, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, deskerrors.ConfigError("failed to load configuration", err)
	}
	if cfg.Log.Verbose || cfg.Log.JSON {
		logging.Setup(verbose || cfg.Log.Verbose, jsonOutput || cfg.Log.JSON, os.Stderr)
	}

	a, err := app.New(ctx, app.WithConfig(cfg))
	if err != nil {
		return nil, err
	}
	app.SetDefault(a)
	return a, nil
}

// currentUser resolves the user the command acts for.
func currentUser() (string, error) {
	name := userFlag
	if name == "" {
		name = os.Getenv("DESKLAB_USER")
	}
	if name == "" {
		u, err := user.Current()
		if err != nil {
			return "", fmt.Errorf("cannot determine user, pass --user: %w", err)
		}
		name = u.Username
	}
	if err := config.ValidateUserName(name); err != nil {
		return "", deskerrors.ValidationError(err.Error())
	}
	return name, nil
}

// currentSubject returns the acting user with the role recorded in the
// account store. Users without an account act with the user role.
func currentSubject(ctx context.Context, a *app.App) (authz.Subject, error) {
	name, err := currentUser()
	if err != nil {
		return authz.Subject{}, err
	}

	account, err := a.Users.Get(ctx, name)
	if err != nil {
		if deskerrors.HasCode(err, deskerrors.ExitNotFound) {
			return authz.Subject{Name: name, Role: authz.RoleUser}, nil
		}
		return authz.Subject{}, err
	}
	return authz.Subject{Name: name, Role: account.Role}, nil
}

// authorize loads the application and checks that the acting user may
// perform action.
func authorize(ctx context.Context, action authz.Action) (*app.App, authz.Subject, error) {
	a, err := getApp(ctx)
	if err != nil {
		return nil, authz.Subject{}, err
	}
	subject, err := currentSubject(ctx, a)
	if err != nil {
		return nil, authz.Subject{}, err
	}
	if err := authz.Check(subject, action); err != nil {
		return nil, authz.Subject{}, err
	}
	return a, subject, nil
}

// readSecret prompts for a secret without echo when stdin is a terminal and
// reads one line otherwise.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return string(data), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptSecret reads a secret. Tests replace it.
var promptSecret = readSecret

// readNewSecret prompts twice on a terminal and requires both entries to
// match.
func readNewSecret(what string) (string, error) {
	first, err := promptSecret("New " + what + ": ")
	if err != nil {
		return "", err
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return first, nil
	}
	second, err := promptSecret("Retype " + what + ": ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", deskerrors.ValidationError(what + "s do not match")
	}
	return first, nil
}

func formatStatus(status health.Status) string {
	switch status {
	case health.StatusHealthy:
		return "✓ healthy"
	case health.StatusUnhealthy:
		return "⚠ unhealthy"
	case health.StatusStopped:
		return "● stopped"
	case health.StatusMissing:
		return "✗ missing"
	default:
		return string(status)
	}
}
