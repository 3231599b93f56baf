// Command panodemo runs a scrolling grid of pooled panorama viewers.
//
// Interactive mode shows a live monitor in the terminal; j/k scroll the
// grid. Headless mode scrolls through the grid on a simulated clock,
// prints the monitor panel and writes the final viewport to a PNG.
//
//	panodemo --cards 24 --max-concurrent 3
//	panodemo --headless --output grid.png --images a.jpg,b.webp
package main

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/gogpu/pano"
	"github.com/gogpu/pano/grid"
	"github.com/gogpu/pano/internal/clock"
	"github.com/gogpu/pano/monitor"
	"github.com/gogpu/pano/panorama"
)

type flags struct {
	configPath string
	cards      int
	columns    int
	cardWidth  int
	cardHeight int
	gap        int
	width      int
	height     int
	images     []string

	maxConcurrent    int
	deferredTeardown time.Duration
	admissionRetry   time.Duration
	textureCap       int

	headless  bool
	steps     int
	stepDelay time.Duration
	output    string

	logLevel string
	logFile  string
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	f, cfg, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	closeLog, err := setupLogging(f, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	if f.headless {
		return runHeadless(f, cfg, stdout)
	}
	return runInteractive(f, cfg)
}

func parseFlags(args []string, stderr io.Writer) (flags, pano.Config, error) {
	var f flags
	fs := pflag.NewFlagSet("panodemo", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	fs.IntVar(&f.cards, "cards", 12, "number of cards")
	fs.IntVar(&f.columns, "columns", 3, "cards per row")
	fs.IntVar(&f.cardWidth, "card-width", 320, "card width in pixels")
	fs.IntVar(&f.cardHeight, "card-height", 180, "card height in pixels")
	fs.IntVar(&f.gap, "gap", 16, "gap between cards in pixels")
	fs.IntVar(&f.width, "width", 1040, "viewport width in pixels")
	fs.IntVar(&f.height, "height", 600, "viewport height in pixels")
	fs.StringSliceVar(&f.images, "images", nil, "panorama URLs or paths, cycled over cards (default synthetic)")

	fs.IntVar(&f.maxConcurrent, "max-concurrent", 0, "live viewer cap (overrides config)")
	fs.DurationVar(&f.deferredTeardown, "deferred-teardown", 0, "delay before evicting a hidden viewer (overrides config)")
	fs.DurationVar(&f.admissionRetry, "admission-retry", 0, "retry interval while waiting for a slot (overrides config)")
	fs.IntVar(&f.textureCap, "texture-cap", panorama.DefaultMaxTextureWidth, "downscale panoramas wider than this")

	fs.BoolVar(&f.headless, "headless", false, "run a scripted scroll on a simulated clock")
	fs.IntVar(&f.steps, "steps", 8, "headless scroll steps")
	fs.DurationVar(&f.stepDelay, "step-delay", time.Second, "simulated time between headless steps")
	fs.StringVarP(&f.output, "output", "o", "panodemo.png", "headless PNG output")

	fs.StringVar(&f.logLevel, "log-level", "warn", "debug, info, warn or error")
	fs.StringVar(&f.logFile, "log-file", "", "write logs to this file instead of stderr")

	if err := fs.Parse(args); err != nil {
		return f, pano.Config{}, err
	}
	if fs.NArg() > 0 {
		return f, pano.Config{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if f.cards < 1 || f.columns < 1 || f.cardWidth < 1 || f.cardHeight < 1 {
		return f, pano.Config{}, errors.New("cards, columns and card size must be positive")
	}

	cfg := pano.DefaultConfig()
	if f.configPath != "" {
		loaded, err := pano.LoadConfig(f.configPath)
		if err != nil {
			return f, pano.Config{}, err
		}
		cfg = loaded
	}
	if fs.Changed("max-concurrent") {
		cfg.Pool.MaxConcurrent = f.maxConcurrent
	}
	if fs.Changed("deferred-teardown") {
		cfg.Pool.DeferredTeardown = f.deferredTeardown
	}
	if fs.Changed("admission-retry") {
		cfg.Pool.AdmissionRetry = f.admissionRetry
	}
	if err := cfg.Validate(); err != nil {
		return f, pano.Config{}, err
	}
	return f, cfg.Normalize(), nil
}

func setupLogging(f flags, stderr io.Writer) (func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", f.logLevel)
	}

	out, closeFn := stderr, func() {}
	switch {
	case f.logFile != "":
		file, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		out, closeFn = file, func() { _ = file.Close() }
	case !f.headless:
		// Log lines would corrupt the alternate screen.
		return func() {}, nil
	}

	pano.SetLogger(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return func() {
		pano.SetLogger(nil)
		closeFn()
	}, nil
}

func imageURL(images []string, i int) string {
	if len(images) == 0 {
		return fmt.Sprintf("%s%d", panorama.SyntheticScheme, i)
	}
	return strings.TrimSpace(images[i%len(images)])
}

func buildGrid(f flags, cfg pano.Config, opts ...grid.Option) (*grid.Grid, error) {
	opts = append(opts,
		grid.WithViewport(image.Rect(0, 0, f.width, f.height)),
		grid.WithResolutionCap(f.textureCap),
	)
	g, err := grid.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	for i, r := range grid.Layout(f.cards, f.columns, f.cardWidth, f.cardHeight, f.gap) {
		if _, err := g.Add(grid.Card{ID: fmt.Sprintf("card-%02d", i), ImageURL: imageURL(f.images, i), Bounds: r}); err != nil {
			_ = g.Close()
			return nil, err
		}
	}
	return g, nil
}

func runInteractive(f flags, cfg pano.Config) error {
	g, err := buildGrid(f, cfg)
	if err != nil {
		return err
	}
	defer g.Close()

	model := monitor.NewModel(g.Monitor(), g, 250*time.Millisecond, f.cardHeight/2)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func runHeadless(f flags, cfg pano.Config, stdout io.Writer) error {
	fake := clock.Fake(time.Now())
	g, err := buildGrid(f, cfg,
		grid.WithClock(fake),
		grid.WithExecutor(func(fn func()) { fn() }),
	)
	if err != nil {
		return err
	}
	defer g.Close()

	total := grid.Layout(f.cards, f.columns, f.cardWidth, f.cardHeight, f.gap)
	bottom := total[len(total)-1].Max.Y
	step := max(1, (bottom-f.height)/max(1, f.steps))

	for i := range f.steps {
		g.ScrollBy(0, step)
		fake.Advance(f.stepDelay)
		s := g.Monitor().Sample()
		fmt.Fprintf(stdout, "step %d  y=%d  active=%d/%d  waiting=%d\n",
			i+1, g.Viewport().Min.Y, s.Pool.Active, s.Pool.MaxConcurrent, s.States[pano.AwaitingAdmission])
	}

	fmt.Fprintln(stdout, monitor.Render(g.Monitor().Sample()))

	if err := compose(g).SavePNG(f.output); err != nil {
		return fmt.Errorf("saving %s: %w", f.output, err)
	}
	fmt.Fprintf(stdout, "wrote %s\n", f.output)
	return nil
}
