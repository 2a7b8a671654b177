// Package setup implements the install and setup commands.
package setup

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/ragebait-block/internal/bootstrap"
	"github.com/dtnitsch/ragebait-block/pkg/permission"
	"github.com/dtnitsch/ragebait-block/pkg/settings"
)

// Granter is the part of permission.Manager these commands use.
type Granter interface {
	Contains(ctx context.Context, name string) (bool, error)
	Request(ctx context.Context, name string) (bool, error)
}

// InstallAction writes the merged settings back to the store and checks the
// engine permission.
func InstallAction(c *cli.Context) error {
	cfg, logger, err := bootstrap.Configure(c)
	if err != nil {
		return err
	}
	backend, closeStore, err := bootstrap.OpenStore(c.Context, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	return install(c.Context, os.Stdout, settings.NewStore(backend, logger), permission.NewManager(backend))
}

// SetupAction reports the engine permission, granting it with --grant.
func SetupAction(c *cli.Context) error {
	cfg, _, err := bootstrap.Configure(c)
	if err != nil {
		return err
	}
	backend, closeStore, err := bootstrap.OpenStore(c.Context, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	return setup(c.Context, os.Stdout, permission.NewManager(backend), c.Bool("grant"))
}

func install(ctx context.Context, w io.Writer, store *settings.Store, perms Granter) error {
	s, err := store.Install(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize settings: %w", err)
	}
	fmt.Fprintf(w, "Settings initialized (%d sites, %d thresholds)\n", len(s.EnabledSites), len(s.Thresholds))

	ok, err := perms.Contains(ctx, permission.TrialML)
	if err != nil {
		return fmt.Errorf("failed to check permissions: %w", err)
	}
	if !ok {
		fmt.Fprintln(w, "The classification engine is not enabled yet.")
		fmt.Fprintln(w, "Run: ragebait setup --grant")
	}
	return nil
}

func setup(ctx context.Context, w io.Writer, perms Granter, grant bool) error {
	ok, err := perms.Contains(ctx, permission.TrialML)
	if err != nil {
		return fmt.Errorf("failed to check permissions: %w", err)
	}
	if ok {
		fmt.Fprintf(w, "Permission %q already granted\n", permission.TrialML)
		return nil
	}
	if !grant {
		fmt.Fprintf(w, "Permission %q is not granted. Re-run with --grant to allow the classification engine.\n", permission.TrialML)
		return nil
	}

	if _, err := perms.Request(ctx, permission.TrialML); err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	fmt.Fprintf(w, "Permission %q granted\n", permission.TrialML)
	return nil
}
