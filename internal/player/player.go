// Package player opens stream URLs in an external media player.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Jelikton/iptv-checker/internal/observability"
)

var (
	// ErrNoURL is returned when the channel has no stream URL.
	ErrNoURL = errors.New("stream URL is empty")

	// ErrUnsupportedOS is returned when no fallback players are known for
	// the running operating system and no player path is configured.
	ErrUnsupportedOS = errors.New("unsupported operating system")

	// ErrNoPlayer is returned when every candidate failed to start.
	ErrNoPlayer = errors.New("no media player could be started")
)

// Windows install locations of VLC.
const (
	VLCPathX86 = `C:\Program Files (x86)\VideoLAN\VLC\vlc.exe`
	VLCPathX64 = `C:\Program Files\VideoLAN\VLC\vlc.exe`
)

// DefaultStartGrace is how long a started player is watched for an
// immediate failure.
const DefaultStartGrace = 700 * time.Millisecond

// Command is one way of opening a URL.
type Command struct {
	Name string
	Args []string
	// Explicit commands name a file path and are skipped when it is missing.
	Explicit bool
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner starts a command without waiting for it to exit.
type Runner interface {
	Start(ctx context.Context, cmd Command) error
}

// Launcher tries the configured player first and then the OS fallbacks.
type Launcher struct {
	playerPath string
	goos       string
	runner     Runner
	exists     func(path string) bool
	logger     *slog.Logger
}

// NewLauncher creates a launcher. playerPath may be empty.
func NewLauncher(playerPath string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Launcher{
		playerPath: strings.TrimSpace(playerPath),
		goos:       runtime.GOOS,
		runner:     ExecRunner{Grace: DefaultStartGrace},
		exists:     fileExists,
		logger:     observability.WithComponent(logger, "player"),
	}
}

// Candidates returns the commands tried for url, in order.
func (l *Launcher) Candidates(url string) []Command {
	var cmds []Command
	if l.playerPath != "" {
		cmds = append(cmds, Command{Name: l.playerPath, Args: []string{url}, Explicit: true})
	}
	switch l.goos {
	case "windows":
		cmds = append(cmds,
			Command{Name: VLCPathX86, Args: []string{url}, Explicit: true},
			Command{Name: VLCPathX64, Args: []string{url}, Explicit: true},
			Command{Name: "vlc", Args: []string{url}},
		)
	case "darwin":
		cmds = append(cmds,
			Command{Name: "open", Args: []string{"-a", "VLC", url}},
			Command{Name: "open", Args: []string{url}},
		)
	case "linux":
		cmds = append(cmds,
			Command{Name: "vlc", Args: []string{url}},
			Command{Name: "xdg-open", Args: []string{url}},
		)
	}
	return cmds
}

// Launch opens url with the first candidate that starts. It returns the
// command that was used.
func (l *Launcher) Launch(ctx context.Context, url string) (Command, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Command{}, ErrNoURL
	}

	candidates := l.Candidates(url)
	if len(candidates) == 0 {
		return Command{}, fmt.Errorf("%w: %s", ErrUnsupportedOS, l.goos)
	}

	var errs []error
	for _, cmd := range candidates {
		if cmd.Explicit && !l.exists(cmd.Name) {
			l.logger.DebugContext(ctx, "player not found", slog.String("path", cmd.Name))
			continue
		}
		if err := l.runner.Start(ctx, cmd); err != nil {
			l.logger.DebugContext(ctx, "player failed to start",
				slog.String("player", filepath.Base(cmd.Name)),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(cmd.Name), err))
			continue
		}
		l.logger.InfoContext(ctx, "player started", slog.String("player", filepath.Base(cmd.Name)))
		return cmd, nil
	}

	return Command{}, errors.Join(append([]error{ErrNoPlayer}, errs...)...)
}

// ExecRunner starts commands as detached child processes. A process that
// exits with an error within Grace counts as a failed start.
type ExecRunner struct {
	Grace time.Duration
}

// Start implements Runner.
func (r ExecRunner) Start(ctx context.Context, c Command) error {
	// the player outlives the request, so ctx does not bound the process
	cmd := exec.Command(c.Name, c.Args...)
	if err := cmd.Start(); err != nil {
		return err
	}

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	if r.Grace <= 0 {
		return nil
	}
	timer := time.NewTimer(r.Grace)
	defer timer.Stop()

	select {
	case err := <-exited:
		return err
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return nil
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
