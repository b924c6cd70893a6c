//go:build !windows

package launcher

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/rogomatic/rogomatic/internal/controller"
	"github.com/rogomatic/rogomatic/internal/handoff"
	"github.com/rogomatic/rogomatic/internal/options"
	"github.com/rogomatic/rogomatic/internal/ptysession"
	"github.com/rogomatic/rogomatic/internal/resolve"
	"github.com/rogomatic/rogomatic/internal/scores"
)

type fakeSession struct {
	pid     int
	readFD  int
	writeFD int
	settled time.Duration
	killed  int
	closed  int
	descErr error
}

func (s *fakeSession) PID() int { return s.pid }

func (s *fakeSession) Settle(d time.Duration) { s.settled = d }

func (s *fakeSession) Kill() error {
	s.killed++
	return nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

func (s *fakeSession) Descriptors() (int, int, error) {
	return s.readFD, s.writeFD, s.descErr
}

type startCall struct {
	path string
	argv []string
	env  []string
	size ptysession.Winsize
}

type fakeController struct {
	launches []handoff.Tokens
	names    []string
	replays  [][2]string
	err      error
}

func (c *fakeController) Launch(tokens handoff.Tokens, displayName string, target controller.Killer) error {
	c.launches = append(c.launches, tokens)
	c.names = append(c.names, displayName)
	if c.err != nil {
		_ = target.Kill()
	}
	return c.err
}

func (c *fakeController) Replay(logFile, opts string) error {
	c.replays = append(c.replays, [2]string{logFile, opts})
	return c.err
}

func writeExe(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

type harness struct {
	l      *Launcher
	ctl    *fakeController
	sess   *fakeSession
	starts []startCall
	target string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		ctl:    &fakeController{},
		sess:   &fakeSession{pid: 4242, readFD: 5, writeFD: 6},
		target: writeExe(t, dir, "rogue", "#!/bin/sh\n"),
	}
	h.l = &Launcher{
		Resolver:    resolve.Resolver{Dir: dir},
		Controller:  h.ctl,
		Threshold:   scores.FixedThreshold(6000),
		Environ:     func() []string { return []string{"HOME=/home/rgm", "TERM=xterm"} },
		SettleDelay: 5 * time.Millisecond,
		Version:     "14",
		User:        "fuzzy",
		ReplayLog:   "roguelog",
		StartPty: func(path string, argv, env []string, size ptysession.Winsize) (Session, error) {
			h.starts = append(h.starts, startCall{path, argv, env, size})
			return h.sess, nil
		},
	}
	return h
}

func TestRunPlayHandsSessionToController(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	req := Request{Flags: options.Defaults(), Arg: "start.sav"}
	require.NoError(t, h.l.Run(req))

	require.Len(t, h.starts, 1)
	start := h.starts[0]
	assert.Equal(t, h.target, start.path)
	assert.Equal(t, []string{h.target, "start.sav"}, start.argv)
	assert.Equal(t, ptysession.DefaultSize, start.size)
	assert.Contains(t, start.env, "HOME=/home/rgm")
	assert.Contains(t, start.env, "TERM=rterm")
	assert.NotContains(t, start.env, "TERM=xterm")
	assert.Contains(t, start.env, "ROGUEOPTS="+options.TargetOptions("Rog-O-Matic 14 for fuzzy"))

	assert.Equal(t, 5*time.Millisecond, h.sess.settled)

	wantFlags := options.Defaults()
	wantFlags.QuitAt = 6000
	require.Len(t, h.ctl.launches, 1)
	assert.Equal(t, handoff.Tokens{Descriptors: "fg", PID: "4242", Options: options.Encode(wantFlags)}, h.ctl.launches[0])
	assert.Equal(t, []string{"Rog-O-Matic 14 for fuzzy"}, h.ctl.names)
	assert.Zero(t, h.sess.killed)
}

func TestRunSavedGameTakesPrecedence(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.NoError(t, h.l.Run(Request{Flags: options.Defaults(), SavedGame: true, Arg: "start.sav"}))
	require.Len(t, h.starts, 1)
	assert.Equal(t, []string{h.target, "-r"}, h.starts[0].argv)
}

func TestRunResolveFailureStartsNothing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	err := h.l.Run(Request{Flags: options.Defaults(), ExplicitTarget: filepath.Join(t.TempDir(), "missing")})
	require.ErrorIs(t, err, resolve.ErrExecutableNotFound)
	assert.Contains(t, err.Error(), "resolve target")
	assert.Empty(t, h.starts)
	assert.Empty(t, h.ctl.launches)
}

func TestRunStartFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.l.StartPty = func(string, []string, []string, ptysession.Winsize) (Session, error) {
		return nil, ptysession.ErrForkFailed
	}

	err := h.l.Run(Request{Flags: options.Defaults()})
	require.ErrorIs(t, err, ptysession.ErrForkFailed)
	assert.Contains(t, err.Error(), "start target")
	assert.Empty(t, h.ctl.launches)
}

func TestRunDescriptorOutOfRangeKillsTarget(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.sess.writeFD = handoff.MaxDescriptor + 1

	err := h.l.Run(Request{Flags: options.Defaults()})
	require.ErrorIs(t, err, handoff.ErrDescriptorRange)
	assert.Equal(t, 1, h.sess.killed)
	assert.Equal(t, 1, h.sess.closed)
	assert.Empty(t, h.ctl.launches)
}

func TestRunDescriptorDupFailureKillsTarget(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.sess.descErr = syscall.EMFILE

	err := h.l.Run(Request{Flags: options.Defaults()})
	require.ErrorIs(t, err, syscall.EMFILE)
	assert.Equal(t, 1, h.sess.killed)
}

func TestRunControllerMissing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.ctl.err = controller.ErrControllerNotFound

	err := h.l.Run(Request{Flags: options.Defaults()})
	require.ErrorIs(t, err, controller.ErrControllerNotFound)
	assert.Contains(t, err.Error(), "launch controller")
	assert.Equal(t, 1, h.sess.killed)
	assert.Equal(t, 1, h.sess.closed)
}

func TestRunReplayNeverStartsTarget(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.NoError(t, h.l.Run(Request{Flags: options.Defaults(), Replay: true}))
	require.NoError(t, h.l.Run(Request{Flags: options.Defaults(), Replay: true, Arg: "game7.log"}))

	assert.Empty(t, h.starts)
	assert.Empty(t, h.ctl.launches)
	// The threshold is not consulted for replays.
	opts := options.Encode(options.Defaults())
	assert.Equal(t, [][2]string{{"roguelog", opts}, {"game7.log", opts}}, h.ctl.replays)
}

func TestRunReplayControllerMissing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.ctl.err = controller.ErrControllerNotFound

	err := h.l.Run(Request{Flags: options.Defaults(), Replay: true})
	require.ErrorIs(t, err, controller.ErrControllerNotFound)
	assert.Contains(t, err.Error(), "replay roguelog")
}

func TestRunScoreOnly(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rgmscore3.6"), []byte("scores\n"), 0o644))
	var out bytes.Buffer
	h.l.Scores = scores.FileDumper{Dir: dir}
	h.l.ScoreVersion = "5.4"
	h.l.Stdout = &out

	require.NoError(t, h.l.Run(Request{Flags: options.Defaults(), ScoreOnly: true, Arg: "3.6"}))
	require.NoError(t, h.l.Run(Request{Flags: options.Defaults(), ScoreOnly: true}))

	assert.Equal(t, "scores\nNo scores recorded for Rogue 5.4.\n", out.String())
	assert.Empty(t, h.starts)
	assert.Empty(t, h.ctl.launches)
	assert.Empty(t, h.ctl.replays)
}

// reportingTarget writes its argv and target environment to $RGM_TEST_OUT.
const reportingTarget = `#!/bin/sh
{
  printf 'argc=%s\n' "$#"
  for a in "$@"; do printf 'arg=%s\n' "$a"; done
  printf 'ROGUEOPTS=%s\n' "$ROGUEOPTS"
  printf 'TERM=%s\n' "$TERM"
  printf 'TERMCAP=%s\n' "$TERMCAP"
} > "$RGM_TEST_OUT.tmp"
mv "$RGM_TEST_OUT.tmp" "$RGM_TEST_OUT"
exec sleep 30
`

func requirePty(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("pty not available: %v", err)
	}
	_ = ptmx.Close()
	_ = tty.Close()
}

type execCall struct {
	path string
	argv []string
}

// endToEnd runs a real launch with the real pty layer and controller
// launcher, with exec recorded instead of performed.
func endToEnd(t *testing.T, req Request) (report map[string][]string, calls []execCall) {
	t.Helper()
	requirePty(t)

	dir := t.TempDir()
	writeExe(t, dir, "rogue", reportingTarget)
	out := filepath.Join(dir, "target.out")

	var pid int
	ctl := &controller.Launcher{
		Candidates:  []string{"./player", "/usr/lib/rogomatic/player"},
		SetPriority: func(int) error { return nil },
		Exec: func(path string, argv, env []string) error {
			calls = append(calls, execCall{path, argv})
			if path == "/usr/lib/rogomatic/player" {
				return nil
			}
			return syscall.ENOENT
		},
	}

	var session *ptysession.Session
	l := &Launcher{
		Resolver:   resolve.Resolver{Dir: dir},
		Controller: ctl,
		Threshold:  scores.FixedThreshold(options.NeverQuit),
		Environ: func() []string {
			return append(os.Environ(), "RGM_TEST_OUT="+out)
		},
		SettleDelay: 10 * time.Millisecond,
		Version:     "14",
		User:        "tester",
		StartPty: func(path string, argv, env []string, size ptysession.Winsize) (Session, error) {
			s, err := ptysession.Start(path, argv, env, size)
			if err == nil {
				session = s
				pid = s.PID()
			}
			return s, err
		},
	}

	require.NoError(t, l.Run(req))
	require.NotNil(t, session)
	t.Cleanup(func() {
		_ = session.Kill()
		var ws unix.WaitStatus
		_, _ = unix.Wait4(pid, &ws, 0, nil)
		_ = session.Close()
	})

	require.Eventually(t, func() bool {
		_, err := os.Stat(out)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "target never wrote its report")
	data, err := os.ReadFile(out)
	require.NoError(t, err)

	report = map[string][]string{}
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		k, v, _ := strings.Cut(line, "=")
		report[k] = append(report[k], v)
	}
	return report, calls
}

func TestEndToEndDefaultLaunch(t *testing.T) {
	flags := options.Defaults()
	report, calls := endToEnd(t, Request{Flags: flags})

	assert.Equal(t, []string{"0"}, report["argc"])
	assert.Equal(t, []string{options.TargetOptions("Rog-O-Matic 14 for tester")}, report["ROGUEOPTS"])
	assert.Equal(t, []string{"rterm"}, report["TERM"])
	assert.Equal(t, []string{options.Termcap}, report["TERMCAP"])

	require.Len(t, calls, 2)
	assert.Equal(t, "./player", calls[0].path)
	assert.Equal(t, "/usr/lib/rogomatic/player", calls[1].path)

	argv := calls[1].argv
	require.Equal(t, "player", argv[0])
	args := argv[1:]
	require.Len(t, args, 4)
	assert.Equal(t, options.Encode(flags), args[2])
	assert.Equal(t, "Rog-O-Matic 14 for tester", args[3])

	d, ok, err := handoff.Decode(handoff.Tokens{Descriptors: args[0], PID: args[1], Options: args[2]})
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, d.ReadFD, d.WriteFD)
	// Both descriptors are open and refer to the pty master.
	for _, fd := range []int{d.ReadFD, d.WriteFD} {
		_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
		assert.NoError(t, err, "fd %d", fd)
	}
}

func TestEndToEndSavedGameWinsOverFile(t *testing.T) {
	report, _ := endToEnd(t, Request{Flags: options.Defaults(), SavedGame: true, Arg: "level3.sav"})

	assert.Equal(t, []string{"1"}, report["argc"])
	assert.Equal(t, []string{"-r"}, report["arg"])
}

func TestFirstNonEmpty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

var _ Session = (*ptysession.Session)(nil)
