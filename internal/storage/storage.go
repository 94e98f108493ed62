// Package storage persists parsed manifest metadata using GORM and SQLite
package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Sentinel errors following Dave Cheney's principle: define errors as values
var (
	ErrNilPackage    = errors.New("package cannot be nil")
	ErrNilRepository = errors.New("repository cannot be nil")
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
)

// InstallState describes how a package entered the system.
type InstallState string

const (
	// InstallDirect means the user asked for the package.
	InstallDirect InstallState = "direct"
	// InstallIndirect means the package came in as a dependency.
	InstallIndirect InstallState = "indirect"
	// InstallNone means the package is known but not installed.
	InstallNone InstallState = "none"
)

// Installed reports whether the state means the package is on the system.
func (s InstallState) Installed() bool { return s == InstallDirect || s == InstallIndirect }

// Kind is the package delivery type, deduced from the package name suffix.
type Kind string

const (
	KindAppImage   Kind = "appimage"
	KindBinary     Kind = "binary"
	KindDeb        Kind = "deb"
	KindGitBranch  Kind = "git-branch"
	KindGitRelease Kind = "git-release"
)

// KindFromName deduces the delivery type from a package name suffix.
// Names without a recognized suffix build from a fixed git release.
func KindFromName(name string) Kind {
	switch {
	case strings.HasSuffix(name, "-app"):
		return KindAppImage
	case strings.HasSuffix(name, "-bin"):
		return KindBinary
	case strings.HasSuffix(name, "-deb"):
		return KindDeb
	case strings.HasSuffix(name, "-git"):
		return KindGitBranch
	default:
		return KindGitRelease
	}
}

// Package is one known package: flattened manifest metadata plus install
// bookkeeping. A package is unique per (name, repository URL) pair.
type Package struct {
	ID uint `gorm:"primaryKey"`

	// Identity
	Name          string `gorm:"not null;index:idx_name;uniqueIndex:idx_unique_package"`
	RepositoryURL string `gorm:"not null;uniqueIndex:idx_unique_package"`

	// Manifest metadata
	PackageName string // canonical name, usually Name without the type suffix
	Description string
	Maintainer  string
	Homepage    string
	License     string
	Version     string `gorm:"not null"`
	Kind        Kind   `gorm:"not null;index"`

	// Repology tracking
	Repology        string
	RepologyVersion string

	// Install bookkeeping
	InstallState     InstallState `gorm:"not null;index"`
	InstalledVersion string
	InstalledAt      time.Time

	LastUpdated time.Time `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository is one package source, ordered by preference when several
// repositories carry a package with the same name.
type Repository struct {
	ID uint `gorm:"primaryKey"`

	Name       string `gorm:"not null;uniqueIndex"`
	URL        string `gorm:"not null;uniqueIndex"`
	Preference uint   `gorm:"not null;default:0"`

	LastUpdated time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PackageFilter narrows a package listing. Zero-valued members are ignored.
type PackageFilter struct {
	// NameLike matches as a substring of the package name.
	NameLike      string
	InstallState  InstallState
	Kind          Kind
	RepositoryURL string
}

// Store defines the interface for metadata storage operations
type Store interface {
	Close() error

	AddPackage(*Package) error
	UpdatePackage(*Package) error
	RemovePackage(name, repositoryURL string) error
	GetPackage(name, repositoryURL string) (*Package, error)
	ListPackages(PackageFilter) ([]*Package, error)
	PagePackages(filter PackageFilter, pageNo, pageSize int) ([]*Package, error)

	AddRepository(*Repository) error
	RemoveRepository(name string) error
	GetRepository(name string) (*Repository, error)
	ListRepositories() ([]*Repository, error)
}

// DB wraps gorm.DB with our metadata operations
type DB struct {
	db *gorm.DB
}

// Config holds database configuration
type Config struct {
	DatabasePath string
	LogLevel     string // silent, error, warn, info
}

// InitDB initializes the database connection and runs migrations
func InitDB(cfg Config) (*DB, error) {
	logLevel := logger.Silent
	switch cfg.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto-migrate schema
	if err := db.AutoMigrate(&Package{}, &Repository{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// AddPackage creates a new package record
func (d *DB) AddPackage(pkg *Package) error {
	if pkg == nil {
		return ErrNilPackage
	}

	var count int64
	if err := d.db.Model(&Package{}).
		Where("name = ? AND repository_url = ?", pkg.Name, pkg.RepositoryURL).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check for existing package: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("package %s in %s: %w", pkg.Name, pkg.RepositoryURL, ErrAlreadyExists)
	}

	if err := d.db.Create(pkg).Error; err != nil {
		return fmt.Errorf("failed to add package: %w", err)
	}
	return nil
}

// UpdatePackage replaces the stored record matching the package identity
func (d *DB) UpdatePackage(pkg *Package) error {
	if pkg == nil {
		return ErrNilPackage
	}

	existing, err := d.GetPackage(pkg.Name, pkg.RepositoryURL)
	if err != nil {
		return err
	}
	pkg.ID = existing.ID

	if err := d.db.Save(pkg).Error; err != nil {
		return fmt.Errorf("failed to update package %s: %w", pkg.Name, err)
	}
	return nil
}

// RemovePackage deletes a package by name and repository URL
func (d *DB) RemovePackage(name, repositoryURL string) error {
	res := d.db.Where("name = ? AND repository_url = ?", name, repositoryURL).
		Delete(&Package{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove package %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("package %s in %s: %w", name, repositoryURL, ErrNotFound)
	}
	return nil
}

// GetPackage retrieves a package by name and repository URL
func (d *DB) GetPackage(name, repositoryURL string) (*Package, error) {
	var pkg Package
	err := d.db.Where("name = ? AND repository_url = ?", name, repositoryURL).
		First(&pkg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("package %s in %s: %w", name, repositoryURL, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get package %s: %w", name, err)
	}
	return &pkg, nil
}

// filtered applies the non-zero filter members to a package query
func (d *DB) filtered(filter PackageFilter) *gorm.DB {
	query := d.db.Model(&Package{})
	if filter.NameLike != "" {
		query = query.Where("name LIKE ?", "%"+filter.NameLike+"%")
	}
	if filter.InstallState != "" {
		query = query.Where("install_state = ?", filter.InstallState)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.RepositoryURL != "" {
		query = query.Where("repository_url = ?", filter.RepositoryURL)
	}
	return query.Order("name ASC")
}

// ListPackages returns all packages matching the filter
func (d *DB) ListPackages(filter PackageFilter) ([]*Package, error) {
	var pkgs []*Package
	if err := d.filtered(filter).Find(&pkgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	return pkgs, nil
}

// PagePackages returns one page of packages matching the filter. Pages are
// numbered from zero.
func (d *DB) PagePackages(filter PackageFilter, pageNo, pageSize int) ([]*Package, error) {
	if pageNo < 0 || pageSize <= 0 {
		return nil, fmt.Errorf("invalid page %d with size %d", pageNo, pageSize)
	}
	var pkgs []*Package
	if err := d.filtered(filter).
		Offset(pageNo * pageSize).Limit(pageSize).
		Find(&pkgs).Error; err != nil {
		return nil, fmt.Errorf("failed to page packages: %w", err)
	}
	return pkgs, nil
}

// AddRepository creates a new repository record
func (d *DB) AddRepository(repo *Repository) error {
	if repo == nil {
		return ErrNilRepository
	}

	var count int64
	if err := d.db.Model(&Repository{}).
		Where("name = ? OR url = ?", repo.Name, repo.URL).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check for existing repository: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("repository %s: %w", repo.Name, ErrAlreadyExists)
	}

	if err := d.db.Create(repo).Error; err != nil {
		return fmt.Errorf("failed to add repository: %w", err)
	}
	return nil
}

// RemoveRepository deletes a repository and every package it carries
func (d *DB) RemoveRepository(name string) error {
	repo, err := d.GetRepository(name)
	if err != nil {
		return err
	}

	if err := d.db.Where("repository_url = ?", repo.URL).
		Delete(&Package{}).Error; err != nil {
		return fmt.Errorf("failed to remove packages of repository %s: %w", name, err)
	}
	if err := d.db.Delete(repo).Error; err != nil {
		return fmt.Errorf("failed to remove repository %s: %w", name, err)
	}
	return nil
}

// GetRepository retrieves a repository by name
func (d *DB) GetRepository(name string) (*Repository, error) {
	var repo Repository
	err := d.db.Where("name = ?", name).First(&repo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("repository %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %s: %w", name, err)
	}
	return &repo, nil
}

// ListRepositories returns all repositories, most preferred first
func (d *DB) ListRepositories() ([]*Repository, error) {
	var repos []*Repository
	if err := d.db.Order("preference ASC, name ASC").Find(&repos).Error; err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	return repos, nil
}
