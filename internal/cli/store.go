package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pacbuild-project/pacbuild/internal/config"
	"github.com/pacbuild-project/pacbuild/internal/expand"
	"github.com/pacbuild-project/pacbuild/internal/storage"
)

func storeCommand() *cli.Command {
	repoFlag := &cli.StringFlag{
		Name:    "repo",
		Aliases: []string{"r"},
		Value:   "official",
		Usage:   "configured repository name",
	}

	return &cli.Command{
		Name:  "store",
		Usage: "Manage the package metadata store",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Parse a manifest and record its metadata",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					repoFlag,
					&cli.BoolFlag{
						Name:  "update",
						Usage: "replace an existing record instead of failing",
					},
				},
				Action: storeAddAction,
			},
			{
				Name:      "get",
				Usage:     "Print one recorded package as JSON",
				ArgsUsage: "<name>",
				Flags:     []cli.Flag{repoFlag},
				Action:    storeGetAction,
			},
			{
				Name:  "list",
				Usage: "List recorded packages",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "substring of the package name"},
					&cli.StringFlag{Name: "state", Usage: "install state (direct, indirect, none)"},
					&cli.StringFlag{Name: "kind", Usage: "package kind (appimage, binary, deb, git-branch, git-release)"},
					&cli.StringFlag{Name: "repo-url", Usage: "repository URL"},
					&cli.IntFlag{Name: "page", Value: 0, Usage: "page number, starting at 0"},
					&cli.IntFlag{Name: "page-size", Value: 0, Usage: "page size, 0 lists everything"},
				},
				Action: storeListAction,
			},
			{
				Name:      "remove",
				Usage:     "Remove one recorded package",
				ArgsUsage: "<name>",
				Flags:     []cli.Flag{repoFlag},
				Action:    storeRemoveAction,
			},
			{
				Name:   "repos",
				Usage:  "List repositories recorded in the store",
				Action: storeReposAction,
			},
		},
	}
}

// openStore loads the configuration and opens the metadata store.
func openStore(c *cli.Context) (*config.Config, *storage.DB, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	db, err := initDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cfg, db, nil
}

func closeStore(db *storage.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}

// resolveRepo maps the --repo flag to a configured repository.
func resolveRepo(c *cli.Context, cfg *config.Config) (config.Repository, error) {
	name := c.String("repo")
	repo, ok := cfg.GetRepository(name)
	if !ok {
		return config.Repository{}, fmt.Errorf("repository %s is not configured", name)
	}
	return repo, nil
}

func storeAddAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("add takes exactly one manifest file")
	}
	cfg, db, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore(db)

	repo, err := resolveRepo(c, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	pkg, err := recordManifest(ctx, db, expand.NewShell(), c.Args().First(), repo, c.Bool("update"))
	if err != nil {
		return err
	}
	slog.Info("package recorded",
		"name", pkg.Name,
		"version", pkg.Version,
		"kind", pkg.Kind,
		"repository", repo.Name)
	return nil
}

// recordManifest parses a manifest and writes its metadata to the store,
// making sure the repository record exists first.
func recordManifest(ctx context.Context, db *storage.DB, expander expand.Expander, path string, repo config.Repository, update bool) (*storage.Package, error) {
	pb, err := parseFile(ctx, expander, path)
	if err != nil {
		return nil, err
	}

	err = db.AddRepository(&storage.Repository{
		Name:        repo.Name,
		URL:         repo.URL,
		Preference:  repo.Preference,
		LastUpdated: time.Now(),
	})
	if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return nil, err
	}

	pkg := storage.FromManifest(pb, repo.URL)
	if update {
		err = db.UpdatePackage(pkg)
	} else {
		err = db.AddPackage(pkg)
	}
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

func storeGetAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("get takes exactly one package name")
	}
	cfg, db, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore(db)

	repo, err := resolveRepo(c, cfg)
	if err != nil {
		return err
	}

	pkg, err := db.GetPackage(c.Args().First(), repo.URL)
	if err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal package: %w", err)
	}
	fmt.Fprintln(c.App.Writer, string(encoded))
	return nil
}

func storeListAction(c *cli.Context) error {
	_, db, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore(db)

	filter := storage.PackageFilter{
		NameLike:      c.String("name"),
		RepositoryURL: c.String("repo-url"),
	}
	if state := c.String("state"); state != "" {
		filter.InstallState, err = parseInstallState(state)
		if err != nil {
			return err
		}
	}
	if kind := c.String("kind"); kind != "" {
		filter.Kind, err = parseKind(kind)
		if err != nil {
			return err
		}
	}

	var pkgs []*storage.Package
	if size := c.Int("page-size"); size > 0 {
		pkgs, err = db.PagePackages(filter, c.Int("page"), size)
	} else {
		pkgs, err = db.ListPackages(filter)
	}
	if err != nil {
		return err
	}

	writePackageTable(c.App.Writer, pkgs)
	return nil
}

// writePackageTable renders packages as an aligned table with title-cased
// kind and state columns.
func writePackageTable(out io.Writer, pkgs []*storage.Package) {
	title := cases.Title(language.English)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tKIND\tSTATE\tREPOSITORY")
	for _, pkg := range pkgs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			pkg.Name,
			pkg.Version,
			title.String(string(pkg.Kind)),
			title.String(string(pkg.InstallState)),
			pkg.RepositoryURL)
	}
	w.Flush()
}

func storeRemoveAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("remove takes exactly one package name")
	}
	cfg, db, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore(db)

	repo, err := resolveRepo(c, cfg)
	if err != nil {
		return err
	}
	if err := db.RemovePackage(c.Args().First(), repo.URL); err != nil {
		return err
	}
	slog.Info("package removed", "name", c.Args().First(), "repository", repo.Name)
	return nil
}

func storeReposAction(c *cli.Context) error {
	_, db, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore(db)

	repos, err := db.ListRepositories()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tURL\tPREFERENCE")
	for _, repo := range repos {
		fmt.Fprintf(w, "%s\t%s\t%d\n", repo.Name, repo.URL, repo.Preference)
	}
	return w.Flush()
}

func parseInstallState(s string) (storage.InstallState, error) {
	switch storage.InstallState(s) {
	case storage.InstallDirect, storage.InstallIndirect, storage.InstallNone:
		return storage.InstallState(s), nil
	default:
		return "", fmt.Errorf("invalid install state %q: use direct, indirect or none", s)
	}
}

func parseKind(s string) (storage.Kind, error) {
	switch storage.Kind(s) {
	case storage.KindAppImage, storage.KindBinary, storage.KindDeb,
		storage.KindGitBranch, storage.KindGitRelease:
		return storage.Kind(s), nil
	default:
		return "", fmt.Errorf("invalid kind %q: use appimage, binary, deb, git-branch or git-release", s)
	}
}
