package viewer

import (
	"context"
	"fmt"
	"net"
	"net/url"
	goruntime "runtime"
	"strconv"
	"sync"

	"github.com/pkg/browser"

	"github.com/firefly-engineering/browserbox/internal/logging"
	"github.com/firefly-engineering/browserbox/internal/system"
)

// DefaultVNCPort is the raw VNC port inside the standalone images.
const DefaultVNCPort = 5900

const (
	vncViewer    = "vncviewer"
	macOpen      = "open"
	macVNCViewer = "/Applications/VNC Viewer.app"
)

// Opener opens a URL in the user's browser.
type Opener func(rawURL string) error

// DefaultOpener uses the platform browser launcher.
var DefaultOpener Opener = browser.OpenURL

// URL returns the noVNC page for a sandbox display port.
func URL(host string, port int, viewOnly bool) string {
	q := url.Values{}
	q.Set("autoconnect", "true")
	q.Set("view_only", strconv.FormatBool(viewOnly))
	u := url.URL{
		Scheme:   "http",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/",
		RawQuery: q.Encode(),
	}
	return u.String()
}

// OpenURL opens the noVNC page with open, or DefaultOpener when nil.
func OpenURL(open Opener, host string, port int, viewOnly bool) (string, error) {
	if open == nil {
		open = DefaultOpener
	}
	target := URL(host, port, viewOnly)
	logging.Debug("opening viewer", "url", target)
	if err := open(target); err != nil {
		return target, fmt.Errorf("failed to open %s: %w", target, err)
	}
	return target, nil
}

// Command returns the native viewer invocation for goos.
func Command(goos, host string, port int) (string, []string, error) {
	args := []string{net.JoinHostPort(host, strconv.Itoa(port)), "WarnUnencrypted=0", "ViewOnly=1"}
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return vncViewer, args, nil
	case "darwin":
		return macOpen, append([]string{"-a", macVNCViewer, "-n", "--args"}, args...), nil
	default:
		return "", nil, fmt.Errorf("no VNC viewer known for %s", goos)
	}
}

// Connect starts a native VNC viewer against host:port. The returned
// release func kills the viewer and is safe to call more than once.
func Connect(ctx context.Context, host string, port int) (release func(), err error) {
	return connect(ctx, system.DefaultExecutor(), goruntime.GOOS, host, port)
}

func connect(ctx context.Context, exec system.CommandExecutor, goos, host string, port int) (func(), error) {
	if port == 0 {
		port = DefaultVNCPort
	}
	name, args, err := Command(goos, host, port)
	if err != nil {
		return nil, err
	}
	if goos != "darwin" {
		if _, err := exec.LookPath(name); err != nil {
			return nil, fmt.Errorf("%s not found in PATH: %w", name, err)
		}
	}

	proc, err := exec.Start(ctx, system.StartOptions{}, name, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to start VNC viewer: %w", err)
	}
	logging.Debug("started VNC viewer", "pid", proc.Pid(), "target", args[len(args)-3])

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := proc.Kill(); err != nil {
				logging.Debug("failed to kill VNC viewer", "error", err)
			}
			_ = proc.Wait()
		})
	}, nil
}
