// Package prefs implements the settings subcommands.
package prefs

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/ragebait-block/internal/bootstrap"
	"github.com/dtnitsch/ragebait-block/models"
	"github.com/dtnitsch/ragebait-block/pkg/settings"
	"github.com/dtnitsch/ragebait-block/pkg/sites"
)

// hiddenLabels are settable but left out of the threshold listing.
var hiddenLabels = map[string]bool{"POSITIVE": true}

const savedMessage = "Settings saved"

// withStore opens the runtime for the duration of fn.
func withStore(c *cli.Context, fn func(ctx context.Context, store *settings.Store) error) error {
	cfg, logger, err := bootstrap.Configure(c)
	if err != nil {
		return err
	}
	store, closeStore, err := bootstrap.OpenStore(c.Context, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(c.Context, settings.NewStore(store, logger))
}

// ShowAction prints the merged settings.
func ShowAction(c *cli.Context) error {
	return withStore(c, func(ctx context.Context, store *settings.Store) error {
		s, err := store.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		printSettings(os.Stdout, s)
		return nil
	})
}

// SiteAction enables or disables a site: settings site <key> on|off
func SiteAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: ragebait settings site <site> on|off", 1)
	}
	key := c.Args().Get(0)
	if _, ok := sites.Lookup(key); !ok {
		return cli.Exit(fmt.Sprintf("unknown site %q (see 'ragebait sites')", key), 1)
	}
	enabled, err := parseSwitch(c.Args().Get(1))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return withStore(c, func(ctx context.Context, store *settings.Store) error {
		site, _ := sites.Lookup(key)
		if err := store.SetSite(ctx, site.Key, enabled); err != nil {
			return err
		}
		fmt.Println(savedMessage)
		return nil
	})
}

// DebugAction switches debug mode: settings debug on|off
func DebugAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: ragebait settings debug on|off", 1)
	}
	enabled, err := parseSwitch(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return withStore(c, func(ctx context.Context, store *settings.Store) error {
		if err := store.SetDebug(ctx, enabled); err != nil {
			return err
		}
		fmt.Println(savedMessage)
		return nil
	})
}

// ThresholdAction lists thresholds, or sets one: settings threshold [LABEL VALUE]
func ThresholdAction(c *cli.Context) error {
	switch c.NArg() {
	case 0:
		return withStore(c, func(ctx context.Context, store *settings.Store) error {
			s, err := store.Load(ctx)
			if err != nil {
				return err
			}
			printThresholds(os.Stdout, s)
			return nil
		})
	case 2:
		label := strings.ToUpper(c.Args().Get(0))
		value, err := strconv.ParseFloat(c.Args().Get(1), 64)
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid threshold %q", c.Args().Get(1)), 1)
		}
		return withStore(c, func(ctx context.Context, store *settings.Store) error {
			if err := store.SetThreshold(ctx, label, value); err != nil {
				return err
			}
			fmt.Println(savedMessage)
			return nil
		})
	default:
		return cli.Exit("usage: ragebait settings threshold [LABEL VALUE]", 1)
	}
}

// SitesAction lists the supported sites and their selectors.
func SitesAction(c *cli.Context) error {
	printSites(os.Stdout, sites.All())
	return nil
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1", "enable", "enabled":
		return true, nil
	case "off", "false", "no", "0", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func printSettings(w io.Writer, s *models.Settings) {
	fmt.Fprintln(w, "Sites:")
	keys := make([]string, 0, len(s.EnabledSites))
	for k := range s.EnabledSites {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-14s %s\n", k, onOff(s.EnabledSites[k]))
	}
	fmt.Fprintf(w, "\nDebug mode: %s\n\n", onOff(s.DebugMode))
	printThresholds(w, s)
}

func printThresholds(w io.Writer, s *models.Settings) {
	fmt.Fprintln(w, "Thresholds:")
	labels := make([]string, 0, len(s.Thresholds))
	for l := range s.Thresholds {
		if hiddenLabels[l] {
			continue
		}
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Fprintf(w, "  %-14s %.2f\n", l, s.Thresholds[l])
	}
}

func printSites(w io.Writer, all []sites.Site) {
	fmt.Fprintf(w, "%-12s %-40s %s\n", "Site", "Post container", "Title")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, s := range all {
		fmt.Fprintf(w, "%-12s %-40s %s\n", s.Key, s.PostContainer, s.TitleSelector)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
