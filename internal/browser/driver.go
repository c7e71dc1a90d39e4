package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/young1lin/browsersearch/internal/config"
	"github.com/young1lin/browsersearch/internal/runner"
	"github.com/young1lin/browsersearch/internal/snapshot"
	"github.com/young1lin/browsersearch/pkg/logger"
)

// EnsureResult reports whether the browser binary is usable.
// When Ready is false, Instructions explains how to install it by hand.
type EnsureResult struct {
	Ready        bool   `json:"ready"`
	Instructions string `json:"instructions,omitempty"`
}

// Driver wraps the browser-automation binary
type Driver struct {
	cmd            runner.Commander
	binary         string
	packageManager string
	pkg            string
	version        string
	timeout        time.Duration
	probeTimeout   time.Duration
	installTimeout time.Duration
	engineTimeout  time.Duration
	maxOutput      int64
	log            *zap.Logger
}

// NewDriver creates a driver for the configured binary. Zero config values fall back to defaults.
func NewDriver(cmd runner.Commander, cfg *config.BrowserConfig, log *zap.Logger) *Driver {
	c := *cfg
	if c.Binary == "" {
		c.Binary = "agent-browser"
	}
	if c.PackageManager == "" {
		c.PackageManager = "npm"
	}
	if c.Package == "" {
		c.Package = c.Binary
	}
	if c.Version == "" {
		c.Version = "latest"
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 5
	}
	if c.InstallTimeout == 0 {
		c.InstallTimeout = 60
	}
	if c.EngineTimeout == 0 {
		c.EngineTimeout = 120
	}
	if c.MaxOutputBytes == 0 {
		c.MaxOutputBytes = snapshot.DefaultMaxOutputBytes
	}

	return &Driver{
		cmd:            cmd,
		binary:         c.Binary,
		packageManager: c.PackageManager,
		pkg:            c.Package,
		version:        c.Version,
		timeout:        time.Duration(c.Timeout) * time.Second,
		probeTimeout:   time.Duration(c.ProbeTimeout) * time.Second,
		installTimeout: time.Duration(c.InstallTimeout) * time.Second,
		engineTimeout:  time.Duration(c.EngineTimeout) * time.Second,
		maxOutput:      c.MaxOutputBytes,
		log:            logger.OrNop(log).Named("browser"),
	}
}

// Binary returns the executable name
func (d *Driver) Binary() string {
	return d.binary
}

// Run invokes the binary with the default browser timeout.
func (d *Driver) Run(ctx context.Context, args ...string) (string, error) {
	return d.RunWithTimeout(ctx, d.timeout, args...)
}

// RunWithTimeout invokes the binary with an explicit timeout.
func (d *Driver) RunWithTimeout(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	return d.cmd.Run(ctx, d.binary, args, timeout)
}

// Open navigates the browser to url.
func (d *Driver) Open(ctx context.Context, url string) error {
	_, err := d.Run(ctx, "open", url)
	return err
}

// Snapshot returns the raw JSON accessibility snapshot of the current page.
func (d *Driver) Snapshot(ctx context.Context) ([]byte, error) {
	out, err := d.Run(ctx, "snapshot", "--json")
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// ParseOutput decodes JSON printed by the binary into v, refusing oversized output.
func (d *Driver) ParseOutput(out []byte, v any) error {
	return snapshot.Decode(out, d.maxOutput, v)
}

// ParseSnapshot decodes "snapshot --json" output and returns its root element.
// Output without a "snapshot" field yields a nil root and no error.
func (d *Driver) ParseSnapshot(out []byte) (*snapshot.Element, error) {
	return snapshot.Parse(out, d.maxOutput)
}

// Version probes the binary with --version.
func (d *Driver) Version(ctx context.Context) (string, error) {
	out, err := d.RunWithTimeout(ctx, d.probeTimeout, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Ensure checks that the binary is installed and tries to install it when it is not.
// Failures are reported through EnsureResult, never as an error.
func (d *Driver) Ensure(ctx context.Context) EnsureResult {
	version, err := d.Version(ctx)
	if err == nil {
		d.log.Debug("browser binary present", zap.String("binary", d.binary), zap.String("version", version))
		return EnsureResult{Ready: true}
	}

	d.log.Info("browser binary unavailable, attempting install",
		zap.String("binary", d.binary),
		zap.Error(err),
	)

	pkgRef := fmt.Sprintf("%s@%s", d.pkg, d.version)
	if _, err := d.cmd.Run(ctx, d.packageManager, []string{"install", "-g", pkgRef}, d.installTimeout); err != nil {
		d.log.Warn("package install failed",
			zap.String("package_manager", d.packageManager),
			zap.String("package", pkgRef),
			zap.Error(err),
		)
		return EnsureResult{Ready: false, Instructions: d.Instructions()}
	}

	if _, err := d.RunWithTimeout(ctx, d.engineTimeout, "install"); err != nil {
		d.log.Warn("browser engine install failed", zap.String("binary", d.binary), zap.Error(err))
		return EnsureResult{Ready: false, Instructions: d.Instructions()}
	}

	d.log.Info("browser binary installed", zap.String("package", pkgRef))
	return EnsureResult{Ready: true}
}

// Instructions returns manual install guidance.
func (d *Driver) Instructions() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is not installed and automatic installation failed.\n", d.binary)
	b.WriteString("Install it manually:\n")
	fmt.Fprintf(&b, "  %s install -g %s@%s\n", d.packageManager, d.pkg, d.version)
	fmt.Fprintf(&b, "  %s install\n", d.binary)
	b.WriteString("Then retry the search.")
	return b.String()
}
