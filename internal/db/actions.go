package db

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/ragebait-block/internal/bootstrap"
	"github.com/dtnitsch/ragebait-block/internal/config"
	dbpkg "github.com/dtnitsch/ragebait-block/pkg/db"
	"github.com/dtnitsch/ragebait-block/pkg/kv"
)

func openSQLite(c *cli.Context) (*dbpkg.DB, error) {
	cfg, _, err := bootstrap.Configure(c)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Driver != config.DriverSQLite {
		return nil, fmt.Errorf("db commands need the sqlite store, configured driver is %q", cfg.Store.Driver)
	}
	database, err := dbpkg.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// KeysAction lists the stored keys.
func KeysAction(c *cli.Context) error {
	database, err := openSQLite(c)
	if err != nil {
		return err
	}
	defer database.Close()

	entries, err := database.Entries(c.Context)
	if err != nil {
		return err
	}
	printEntries(os.Stdout, database.Path(), entries)
	return nil
}

// GetAction prints the value stored under a key.
func GetAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: ragebait db get <key>", 1)
	}
	database, err := openSQLite(c)
	if err != nil {
		return err
	}
	defer database.Close()

	key := c.Args().First()
	raw, err := database.Get(c.Context, key)
	if errors.Is(err, kv.ErrNotFound) {
		return cli.Exit(fmt.Sprintf("key %q not found", key), 1)
	}
	if err != nil {
		return err
	}
	return printValue(os.Stdout, raw)
}

func printEntries(w io.Writer, path string, entries []dbpkg.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No keys found")
		return
	}

	fmt.Fprintf(w, "%-20s %-10s %-20s\n", "Key", "Bytes", "Updated")
	fmt.Fprintln(w, strings.Repeat("-", 52))
	for _, e := range entries {
		fmt.Fprintf(w, "%-20s %-10d %-20s\n", e.Key, e.SizeBytes, e.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "\nTotal: %d keys in %s\n", len(entries), path)
}

// printValue pretty-prints JSON values and writes anything else as is.
func printValue(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = w.Write(append(raw, '\n'))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
