package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pacbuild-project/pacbuild/internal/diag"
	"github.com/pacbuild-project/pacbuild/internal/expand"
	"github.com/pacbuild-project/pacbuild/internal/pacbuild"
)

func lintCommand() *cli.Command {
	return &cli.Command{
		Name:      "lint",
		Usage:     "Parse manifest files and report every diagnostic found",
		ArgsUsage: "<file>...",
		Action:    lintAction,
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Parse one manifest and print it as JSON",
		ArgsUsage: "<file>",
		Action:    showAction,
	}
}

func lintAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("no manifest files given")
	}
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()
	return lintFiles(ctx, c.App.Writer, expand.NewShell(), c.Args().Slice())
}

func showAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("show takes exactly one manifest file")
	}
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()
	return showManifest(ctx, c.App.Writer, expand.NewShell(), c.Args().First())
}

// parseFile reads and parses one manifest.
func parseFile(ctx context.Context, expander expand.Expander, path string) (*pacbuild.PacBuild, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return pacbuild.ParseWith(ctx, expander, string(src))
}

// lintFiles parses every file and writes a verdict per file: a rendered
// diagnostic report for failures, a one-line summary otherwise. The error
// reports how many files failed.
func lintFiles(ctx context.Context, out io.Writer, expander expand.Expander, paths []string) error {
	failed := 0
	for _, path := range paths {
		pb, err := parseFile(ctx, expander, path)
		if err != nil {
			failed++
			var perr *diag.ParseError
			if errors.As(err, &perr) {
				fmt.Fprintf(out, "%s:\n%s\n", path, diag.Render(perr))
			} else {
				fmt.Fprintf(out, "%s: %v\n", path, err)
			}
			continue
		}

		slog.Debug("manifest is clean", "path", path, "pkgname", pb.Pkgname[0].String())
		fmt.Fprintf(out, "%s: ok (%s %s)\n", path, pb.Pkgname[0], versionLabel(pb))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d manifests failed", failed, len(paths))
	}
	return nil
}

// showManifest parses one file and prints the manifest as indented JSON.
func showManifest(ctx context.Context, out io.Writer, expander expand.Expander, path string) error {
	pb, err := parseFile(ctx, expander, path)
	if err != nil {
		var perr *diag.ParseError
		if errors.As(err, &perr) {
			fmt.Fprintln(out, diag.Render(perr))
		}
		return err
	}

	encoded, err := json.MarshalIndent(pb, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	fmt.Fprintln(out, string(encoded))
	return nil
}

// versionLabel renders the manifest version for one-line summaries.
func versionLabel(pb *pacbuild.PacBuild) string {
	if pb.Pkgver.Variable != nil {
		return pb.Pkgver.Variable.String()
	}
	return "(dynamic version)"
}
