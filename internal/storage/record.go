package storage

import (
	"strings"
	"time"

	"github.com/pacbuild-project/pacbuild/internal/pacbuild"
)

// typeSuffixes are the package name suffixes that carry a delivery type.
var typeSuffixes = []string{"-app", "-bin", "-deb", "-git"}

// canonicalName strips the delivery-type suffix off a package name.
func canonicalName(name string) string {
	for _, suffix := range typeSuffixes {
		if trimmed, found := strings.CutSuffix(name, suffix); found && trimmed != "" {
			return trimmed
		}
	}
	return name
}

// FromManifest flattens a parsed manifest into a store record for the given
// repository. The record starts uninstalled; install bookkeeping is written
// by whoever performs the install.
func FromManifest(pb *pacbuild.PacBuild, repositoryURL string) *Package {
	if pb == nil || len(pb.Pkgname) == 0 {
		return nil
	}
	name := pb.Pkgname[0].String()

	pkg := &Package{
		Name:          name,
		RepositoryURL: repositoryURL,
		PackageName:   canonicalName(name),
		Description:   pb.Pkgdesc,
		Homepage:      pb.URL,
		License:       pb.License,
		Kind:          KindFromName(name),
		InstallState:  InstallNone,
		LastUpdated:   time.Now(),
	}

	if pb.Pkgver.Variable != nil {
		pkg.Version = pb.Pkgver.Variable.String()
	} else if pb.Pkgver.IsFunction() {
		// Dynamic versions are resolved at build time.
		pkg.Version = pb.Pkgver.Function
	}

	if len(pb.Maintainer) > 0 {
		maintainers := make([]string, len(pb.Maintainer))
		for i, m := range pb.Maintainer {
			maintainers[i] = m.String()
		}
		pkg.Maintainer = strings.Join(maintainers, ", ")
	}

	if len(pb.Repology) > 0 {
		filters := make([]string, len(pb.Repology))
		for i, f := range pb.Repology {
			filters[i] = f.String()
		}
		pkg.Repology = strings.Join(filters, "; ")
	}

	return pkg
}
