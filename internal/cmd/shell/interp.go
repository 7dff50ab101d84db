package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rzbill/multiflow/internal/device"
	"github.com/rzbill/multiflow/internal/flow"
	"github.com/rzbill/multiflow/internal/inspect"
)

// ErrQuit is returned by Exec for quit and exit.
var ErrQuit = errors.New("quit")

// Registry is the part of device.Registry the interpreter drives.
type Registry interface {
	Open(minor int) (*device.Session, error)
	Enable(minor int) error
	Disable(minor int) error
	Stats() []device.DeviceStats
}

// Interp executes shell lines against a registry.
type Interp struct {
	reg     Registry
	out     io.Writer
	format  inspect.Format
	session *device.Session
}

// NewInterp returns an interpreter writing results to out.
func NewInterp(reg Registry, out io.Writer) *Interp {
	return &Interp{reg: reg, out: out, format: inspect.FormatTable}
}

// SetFormat selects the status output format.
func (in *Interp) SetFormat(f inspect.Format) { in.format = f }

// Session returns the current session, if any.
func (in *Interp) Session() *device.Session { return in.session }

// Close closes the current session.
func (in *Interp) Close() error {
	if in.session == nil {
		return nil
	}
	err := in.session.Close()
	in.session = nil
	return err
}

// Run executes lines from r until EOF, quit or ctx is done. With prompt set
// a prompt is printed before each line and command errors are reported
// without stopping; otherwise the first error stops the run unless
// keepGoing is set.
func (in *Interp) Run(ctx context.Context, r io.Reader, prompt, keepGoing bool) error {
	sc := bufio.NewScanner(r)
	line := 0
	for {
		if prompt {
			fmt.Fprint(in.out, in.prompt())
		}
		if !sc.Scan() {
			return sc.Err()
		}
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		err := in.Exec(ctx, sc.Text())
		switch {
		case err == nil:
		case errors.Is(err, ErrQuit):
			return nil
		case prompt || keepGoing:
			fmt.Fprintf(in.out, "error: %v\n", err)
		default:
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

func (in *Interp) prompt() string {
	if in.session == nil {
		return "multiflow> "
	}
	return fmt.Sprintf("multiflow[%d:%s]> ", in.session.Minor(), in.session.Priority())
}

// Exec runs one command line. Blank lines and # comments are ignored.
func (in *Interp) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	cmd = strings.ToLower(cmd)
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "open":
		return in.open(rest)
	case "close":
		if in.session == nil {
			return errors.New("no open session")
		}
		return in.Close()
	case "write":
		return in.write(ctx, rest)
	case "read":
		return in.read(ctx, rest)
	case "priority", "prio":
		return in.setPriority(rest)
	case "low", "high":
		return in.setPriority(cmd)
	case "blocking":
		return in.setBlocking(rest)
	case "block":
		return in.setBlocking("on")
	case "nonblock", "non-blocking":
		return in.setBlocking("off")
	case "timeout":
		return in.setTimeout(rest)
	case "enable", "disable":
		return in.toggle(cmd, rest)
	case "status":
		return in.status(rest)
	case "sleep":
		return in.sleep(ctx, rest)
	case "help", "?":
		fmt.Fprintln(in.out, helpText)
		return nil
	case "quit", "exit":
		return ErrQuit
	}
	return fmt.Errorf("unknown command %q (try help)", cmd)
}

const helpText = `commands:
  open <minor>           open a session (default: high, non-blocking, timeout 0)
  close                  close the session
  write <text>           write text to the session's flow
  read <n>               read up to n bytes
  priority low|high      select the flow
  blocking on|off        wait for a busy flow or fail fast
  timeout <ms>           how long a blocking call waits
  enable|disable <minor> allow or refuse new sessions
  status [filter]        show device counters, optional CEL filter
  sleep <ms>             pause
  quit                   leave`

func (in *Interp) need() (*device.Session, error) {
	if in.session == nil {
		return nil, errors.New("no open session (use: open <minor>)")
	}
	return in.session, nil
}

func atoi(s, what string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return n, nil
}

func (in *Interp) open(arg string) error {
	minor, err := atoi(arg, "minor")
	if err != nil {
		return err
	}
	s, err := in.reg.Open(minor)
	if err != nil {
		return err
	}
	_ = in.Close()
	in.session = s
	fmt.Fprintf(in.out, "opened device %d (session %s)\n", minor, s.ID())
	return nil
}

func (in *Interp) write(ctx context.Context, text string) error {
	s, err := in.need()
	if err != nil {
		return err
	}
	n, err := s.WriteContext(ctx, []byte(text))
	if err != nil {
		return err
	}
	fmt.Fprintf(in.out, "wrote %d bytes\n", n)
	return nil
}

func (in *Interp) read(ctx context.Context, arg string) error {
	s, err := in.need()
	if err != nil {
		return err
	}
	n, err := atoi(arg, "length")
	if err != nil {
		return err
	}
	if n <= 0 {
		return fmt.Errorf("length must be positive, got %d", n)
	}
	buf := make([]byte, n)
	got, err := s.ReadContext(ctx, buf)
	if errors.Is(err, device.ErrNoData) {
		fmt.Fprintln(in.out, "no data")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(in.out, "read %d bytes: %q\n", got, buf[:got])
	return nil
}

func (in *Interp) setPriority(arg string) error {
	s, err := in.need()
	if err != nil {
		return err
	}
	p, err := flow.ParsePriority(arg)
	if err != nil {
		return err
	}
	if err := s.SetPriority(p); err != nil {
		return err
	}
	fmt.Fprintf(in.out, "priority %s\n", p)
	return nil
}

func (in *Interp) setBlocking(arg string) error {
	s, err := in.need()
	if err != nil {
		return err
	}
	var on bool
	switch strings.ToLower(arg) {
	case "on", "true", "yes", "1":
		on = true
	case "off", "false", "no", "0":
	default:
		return fmt.Errorf("blocking expects on|off, got %q", arg)
	}
	s.SetBlocking(on)
	fmt.Fprintf(in.out, "blocking %t\n", on)
	return nil
}

func (in *Interp) setTimeout(arg string) error {
	s, err := in.need()
	if err != nil {
		return err
	}
	ms, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timeout %q", arg)
	}
	s.SetTimeoutMillis(ms)
	fmt.Fprintf(in.out, "timeout %s\n", s.Timeout())
	return nil
}

func (in *Interp) toggle(cmd, arg string) error {
	minor, err := atoi(arg, "minor")
	if err != nil {
		return err
	}
	if cmd == "enable" {
		err = in.reg.Enable(minor)
	} else {
		err = in.reg.Disable(minor)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(in.out, "device %d %sd\n", minor, cmd)
	return nil
}

func (in *Interp) status(expr string) error {
	f, err := inspect.NewFilter(expr)
	if err != nil {
		return err
	}
	return inspect.Render(in.out, f.Apply(in.reg.Stats()), in.format)
}

func (in *Interp) sleep(ctx context.Context, arg string) error {
	ms, err := atoi(arg, "duration")
	if err != nil {
		return err
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
