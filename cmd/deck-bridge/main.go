package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ensigniasec/deck-bridge/internal/config"
	"github.com/ensigniasec/deck-bridge/internal/deck"
	"github.com/ensigniasec/deck-bridge/internal/dispatch"
	"github.com/ensigniasec/deck-bridge/internal/host"
	"github.com/ensigniasec/deck-bridge/internal/keymap"
	"github.com/ensigniasec/deck-bridge/internal/settings"
	"github.com/ensigniasec/deck-bridge/internal/surface"
	"github.com/ensigniasec/deck-bridge/internal/surface/term"
	"github.com/ensigniasec/deck-bridge/internal/surface/virtual"
)

//nolint:gochecknoglobals // Cobra requires package-level vars for flag bindings in current structure.
var (
	// Version metadata populated at build time via -ldflags.
	releaseVersion = "dev"
	commit         = "none"
	date           = "unknown"

	// Used for flags.
	verbose      bool
	jsonOutput   bool
	settingsFile string

	rootCmd = &cobra.Command{
		Use:   "deck-bridge",
		Short: "Bind the keys of a key deck to methods on local components.",
		Long: `deck-bridge renders a configured key map onto a key deck and, on every key press, ` +
			`invokes the bound method on the bound component without blocking the deck.`,
		SilenceUsage: true,
	}
)

//nolint:gochecknoinits // Cobra command wiring performed in init in current structure.
func init() {
	// Route logs to stderr to avoid polluting stdout, especially for --json output.
	logrus.SetOutput(os.Stderr)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable detailed logging output")
	rootCmd.PersistentFlags().
		StringVar(&settingsFile, "settings", "", "Optional: settings file (default: deck-bridge.yaml in the config dir or working dir)")

	validateCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results in JSON format instead of text")

	runCmd.Flags().String("surface", settings.SurfaceVirtual, "Surface to drive: terminal or virtual")
	runCmd.Flags().String("name", "deck", "Component name keys use to address the deck itself")
	runCmd.Flags().Int("keys", virtual.DefaultKeys, "Number of keys on the surface")
	runCmd.Flags().Int("columns", virtual.DefaultColumns, "Keys per row")
	runCmd.Flags().String("log-level", "info", "Log level: trace, debug, info, warn, error")
	runCmd.Flags().String("log-format", "text", "Log format: text or json")
	runCmd.Flags().String("log-file", "", "Write logs here while the terminal surface owns the screen")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)

	// Built-in version flag: set version string and a custom template.
	rootCmd.Version = releaseVersion
	rootCmd.Annotations = map[string]string{"commit": commit, "date": date}
	rootCmd.SetVersionTemplate("{{printf \"%s %s\\ncommit: %s\\ndate: %s\\n\" .DisplayName .Version (index .Annotations \"commit\") (index .Annotations \"date\")}}")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

// fileReport is one validated file, as printed by validate --json.
type fileReport struct {
	Path                 string   `json:"path"`
	RequiredComponents   []string `json:"required_components"`
	RequiredCapabilities []string `json:"required_capabilities"`
	Components           int      `json:"declared_components"`
	Error                string   `json:"error,omitempty"`
}

//nolint:gochecknoglobals // Cobra command is defined at package scope in current structure.
var validateCmd = &cobra.Command{
	Use:   "validate PATH...",
	Short: "Validate key map configuration files and list the components they need.",
	Long: "Validate one or more configuration files. Directories are searched for .json, .yaml, .yml " +
		"and .toml files. Exits non-zero if any file is invalid.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		} else if jsonOutput {
			logrus.SetLevel(logrus.WarnLevel)
		}

		files, err := config.Discover(cmd.Context(), args...)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no configuration files found in %s", strings.Join(args, ", "))
		}

		reports := make([]fileReport, 0, len(files))
		failed := 0
		for _, path := range files {
			r := validateFile(path)
			if r.Error != "" {
				failed++
			}
			reports = append(reports, r)
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(reports); err != nil {
				return err
			}
		} else {
			printReports(cmd.OutOrStdout(), reports)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d configuration files are invalid", failed, len(files))
		}
		return nil
	},
}

func validateFile(path string) fileReport {
	r := fileReport{Path: path}
	attrs, err := config.Load(path)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	required, caps, err := keymap.Validate(attrs)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	specs, err := host.Specs(attrs)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.RequiredComponents = required
	r.RequiredCapabilities = caps
	r.Components = len(specs)
	return r
}

func printReports(w io.Writer, reports []fileReport) {
	for _, r := range reports {
		if r.Error != "" {
			fmt.Fprintf(w, "✗ %s\n    %s\n", r.Path, r.Error)
			continue
		}
		components := "none"
		if len(r.RequiredComponents) > 0 {
			components = strings.Join(r.RequiredComponents, ", ")
		}
		fmt.Fprintf(w, "✓ %s\n    requires: %s\n", r.Path, components)
	}
}

//nolint:gochecknoglobals // Cobra command is defined at package scope in current structure.
var runCmd = &cobra.Command{
	Use:   "run CONFIG",
	Short: "Drive a surface with the key map in CONFIG.",
	Long: "Apply CONFIG to a surface and dispatch key presses until interrupted. " +
		"The terminal surface is interactive; the virtual surface reads one key index per line from stdin " +
		"and exits at end of input. SIGHUP reloads CONFIG; a reload that fails validation keeps the current key map.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load(cmd, settingsFile)
		if err != nil {
			return err
		}
		if err := s.ConfigureLogging(os.Stderr, verbose); err != nil {
			return err
		}
		return runDeck(cmd, s, args[0])
	},
}

// loadConfig reads path and builds the components it declares.
func loadConfig(path string) (keymap.Attributes, dispatch.Dependencies, error) {
	attrs, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	deps, err := host.Build(attrs)
	if err != nil {
		return nil, nil, err
	}
	return attrs, deps, nil
}

func runDeck(cmd *cobra.Command, s settings.Settings, path string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	attrs, deps, err := loadConfig(path)
	if err != nil {
		return err
	}

	var (
		disc  surface.Discoverer
		drive func(context.Context) error
	)
	switch s.Surface {
	case settings.SurfaceTerminal:
		logOut, closer, err := s.LogWriter()
		if err != nil {
			return err
		}
		defer closer.Close()
		td := term.New(s.Keys, s.Columns).WithLogOutput(logOut)
		disc, drive = td.Discoverer(), td.Run
	default:
		vd := virtual.New(virtual.WithGeometry(s.Keys, s.Columns))
		disc = virtual.Discoverer(vd)
		drive = func(ctx context.Context) error { return feed(ctx, vd, cmd.InOrStdin()) }
	}

	// Invocations are not cancelled by an interrupt; shutdown only stops new presses.
	d := deck.New(context.WithoutCancel(ctx), s.Name, disc)
	defer func() {
		if err := d.Close(); err != nil {
			logrus.Warn(err)
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	if err := d.Reconfigure(ctx, attrs, deps); err != nil {
		return err
	}

	go reloadOnHangup(ctx, d, path, hup)

	if err := drive(ctx); err != nil {
		return err
	}
	// At end of input no more presses can arrive, so pending invocations get to
	// finish. An interrupt releases the surface right away.
	if s.Surface != settings.SurfaceTerminal && ctx.Err() == nil {
		waitInflight(ctx, d.Dispatcher())
	}
	return nil
}

// waitInflight waits for running invocations until ctx is done.
func waitInflight(ctx context.Context, disp *dispatch.Dispatcher) {
	done := make(chan struct{})
	go func() {
		disp.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logrus.Warn("interrupted while invocations were still running")
	}
}

// feed taps keys read from r until r ends or ctx is done.
func feed(ctx context.Context, vd *virtual.Deck, r io.Reader) error {
	done := make(chan error, 1)
	go func() { done <- vd.Feed(ctx, r) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	}
}

// reloadOnHangup re-applies the configuration at path on every signal from hup.
func reloadOnHangup(ctx context.Context, d *deck.Deck, path string, hup <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logrus.Infof("reloading %s", path)
			if err := reload(ctx, d, path); err != nil {
				logrus.Errorf("reload failed, keeping the current key map: %v", err)
			}
		}
	}
}

func reload(ctx context.Context, d *deck.Deck, path string) error {
	attrs, deps, err := loadConfig(path)
	if err != nil {
		return err
	}
	return d.Reconfigure(ctx, attrs, deps)
}

func main() {
	Execute()
}
