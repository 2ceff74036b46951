package player

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	fail  map[string]error
	tried []Command
}

func (f *fakeRunner) Start(_ context.Context, cmd Command) error {
	f.tried = append(f.tried, cmd)
	return f.fail[cmd.Name]
}

func newTestLauncher(goos, playerPath string, existing ...string) (*Launcher, *fakeRunner) {
	runner := &fakeRunner{fail: map[string]error{}}
	l := NewLauncher(playerPath, nil)
	l.goos = goos
	l.runner = runner
	l.exists = func(path string) bool {
		for _, p := range existing {
			if p == path {
				return true
			}
		}
		return false
	}
	return l, runner
}

func names(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}

func TestCandidates(t *testing.T) {
	const url = "http://a/live.m3u8"

	tests := []struct {
		goos   string
		player string
		want   []string
	}{
		{"linux", "", []string{"vlc " + url, "xdg-open " + url}},
		{"darwin", "", []string{"open -a VLC " + url, "open " + url}},
		{"windows", "", []string{VLCPathX86 + " " + url, VLCPathX64 + " " + url, "vlc " + url}},
		{"linux", "/opt/mpv", []string{"/opt/mpv " + url, "vlc " + url, "xdg-open " + url}},
		{"plan9", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.goos+tt.player, func(t *testing.T) {
			l, _ := newTestLauncher(tt.goos, tt.player)
			assert.Equal(t, tt.want, names(l.Candidates(url)))
		})
	}
}

func TestLaunch_ConfiguredPlayerFirst(t *testing.T) {
	l, runner := newTestLauncher("linux", "/opt/mpv", "/opt/mpv")

	cmd, err := l.Launch(context.Background(), "http://a/1")
	require.NoError(t, err)
	assert.Equal(t, "/opt/mpv", cmd.Name)
	assert.Len(t, runner.tried, 1)
}

func TestLaunch_MissingConfiguredPlayerFallsBack(t *testing.T) {
	l, runner := newTestLauncher("linux", "/opt/missing")
	runner.fail["vlc"] = errors.New("executable file not found")

	cmd, err := l.Launch(context.Background(), "http://a/1")
	require.NoError(t, err)
	assert.Equal(t, "xdg-open", cmd.Name)
	assert.Equal(t, []string{"vlc http://a/1", "xdg-open http://a/1"}, names(runner.tried))
}

func TestLaunch_WindowsSkipsMissingInstallPaths(t *testing.T) {
	l, runner := newTestLauncher("windows", "", VLCPathX64)

	cmd, err := l.Launch(context.Background(), "http://a/1")
	require.NoError(t, err)
	assert.Equal(t, VLCPathX64, cmd.Name)
	assert.Len(t, runner.tried, 1)
}

func TestLaunch_AllFail(t *testing.T) {
	l, runner := newTestLauncher("linux", "")
	runner.fail["vlc"] = errors.New("not found")
	runner.fail["xdg-open"] = errors.New("exit status 3")

	_, err := l.Launch(context.Background(), "http://a/1")
	require.ErrorIs(t, err, ErrNoPlayer)
	assert.ErrorContains(t, err, "xdg-open: exit status 3")
}

func TestLaunch_Errors(t *testing.T) {
	l, runner := newTestLauncher("linux", "")
	_, err := l.Launch(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNoURL)
	assert.Empty(t, runner.tried)

	unknown, _ := newTestLauncher("plan9", "")
	_, err = unknown.Launch(context.Background(), "http://a/1")
	assert.ErrorIs(t, err, ErrUnsupportedOS)
}

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell")
	}
	r := ExecRunner{Grace: 2 * time.Second}
	ctx := context.Background()

	assert.Error(t, r.Start(ctx, Command{Name: "sh", Args: []string{"-c", "exit 3"}}))
	assert.NoError(t, r.Start(ctx, Command{Name: "sh", Args: []string{"-c", "exit 0"}}))
	assert.Error(t, r.Start(ctx, Command{Name: "/nonexistent/player"}))

	long := ExecRunner{Grace: 50 * time.Millisecond}
	assert.NoError(t, long.Start(ctx, Command{Name: "sleep", Args: []string{"1"}}))
}
