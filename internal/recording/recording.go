package recording

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/browserbox/internal/audit"
	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/logging"
	"github.com/firefly-engineering/browserbox/internal/runtime"
)

const (
	// DefaultExtension is appended to recording names without one.
	DefaultExtension = ".mp4"

	// Framerate is the capture rate passed to ffmpeg.
	Framerate = 15

	// Display is the X display the standalone images run on.
	Display = ":99.0"

	// DefaultStopGrace bounds how long Stop waits for ffmpeg to finalize the file.
	DefaultStopGrace = 5 * time.Second

	timestampLayout = "20060102-150405"
	recorderProcess = "ffmpeg"
	execUser        = "root"
)

// ErrNotRecording is returned by Stop when no recording is active.
var ErrNotRecording = stderrors.New("no active recording")

var (
	unsafeChars    = regexp.MustCompile(`[^-A-Za-z0-9_.]`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

// ConvertToFilename appends a timestamp to name and normalizes the result:
// "My Report.mp4" at 2024-01-02 03:04:05 becomes "My_Report_20240102-030405.mp4".
// Spaces and characters outside [A-Za-z0-9._-] become "_" and runs of "_" collapse.
func ConvertToFilename(name string, now time.Time) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	filename := fmt.Sprintf("%s_%s%s", base, now.Format(timestampLayout), ext)
	filename = strings.ReplaceAll(strings.TrimSpace(filename), " ", "_")
	filename = unsafeChars.ReplaceAllString(filename, "_")
	return underscoreRuns.ReplaceAllString(filename, "_")
}

// Recorder drives the ffmpeg sidecar inside one sandbox container.
// At most one recording is active at a time.
type Recorder struct {
	Runtime      runtime.Runtime
	ContainerID  string
	Session      string
	HostDir      string
	ContainerDir string
	Width        int
	Height       int
	StopGrace    time.Duration

	// Enabled false turns Start and Stop into no-ops.
	Enabled bool

	// Audit, when set, receives record-start and record-stop events.
	Audit *audit.Logger

	// Now returns the timestamp used in filenames.
	Now func() time.Time

	mu     sync.Mutex
	active *Recording
}

// Recording is one active or finished capture.
type Recording struct {
	Name     string // sanitized file name
	HostPath string // where the file appears on the host
	Started  time.Time
}

// Active returns the current recording, or nil.
func (r *Recorder) Active() *Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Recorder) stopGrace() time.Duration {
	if r.StopGrace <= 0 {
		return DefaultStopGrace
	}
	return r.StopGrace
}

// StartCommand returns the ffmpeg invocation capturing the display to path.
func (r *Recorder) StartCommand(path string) []string {
	return []string{
		recorderProcess,
		"-video_size", fmt.Sprintf("%dx%d", r.Width, r.Height),
		"-framerate", strconv.Itoa(Framerate),
		"-f", "x11grab",
		"-i", Display,
		"-pix_fmt", "yuv420p",
		path,
	}
}

// StopCommand returns the command that interrupts ffmpeg and waits, bounded by
// the grace period, for it to exit so the container file is finalized.
func (r *Recorder) StopCommand() []string {
	proc := shellquote.Join(recorderProcess)
	script := fmt.Sprintf("pkill -INT -x %s && while pgrep -x %s >/dev/null; do sleep 0.1; done", proc, proc)
	secs := int((r.stopGrace() + time.Second - 1) / time.Second)
	return []string{"timeout", strconv.Itoa(secs), "sh", "-c", script}
}

// videoExtensions are the containers ffmpeg can infer from a file name.
var videoExtensions = map[string]bool{".mp4": true, ".mkv": true, ".webm": true, ".mov": true, ".avi": true}

// Start begins recording into a file derived from name. Names without a
// video extension, test node ids included, get .mp4.
func (r *Recorder) Start(ctx context.Context, name string) (*Recording, error) {
	if !r.Enabled {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, errors.ContainerFailed("start recording",
			fmt.Errorf("recording %s is still active", r.active.Name))
	}

	if !videoExtensions[strings.ToLower(filepath.Ext(name))] {
		name += DefaultExtension
	}
	filename := ConvertToFilename(name, r.now())

	hostPath, err := securejoin.SecureJoin(r.HostDir, filename)
	if err != nil {
		return nil, errors.ContainerFailed("start recording", err)
	}
	if err := os.MkdirAll(r.HostDir, 0755); err != nil {
		return nil, errors.ContainerFailed("start recording", err)
	}

	cmd := r.StartCommand(r.ContainerDir + "/" + filename)
	logging.Debug("starting recording", "container", r.ContainerID, "command", shellquote.Join(cmd...))

	if _, err := r.Runtime.Exec(ctx, r.ContainerID, cmd, runtime.ExecOptions{User: execUser, Detach: true}); err != nil {
		return nil, errors.ContainerFailed("start recording", err)
	}

	r.active = &Recording{Name: filename, HostPath: hostPath, Started: r.now()}
	r.logEvent(audit.EventRecordStart, filename)
	return r.active, nil
}

// Stop interrupts the active recording and returns it. A non-zero exit of
// the stop command is logged and not returned: the file may still be usable.
func (r *Recorder) Stop(ctx context.Context) (*Recording, error) {
	if !r.Enabled {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.active
	if rec == nil {
		return nil, ErrNotRecording
	}
	r.active = nil

	// The exec itself gets a little longer than the in-container timeout.
	stopCtx, cancel := context.WithTimeout(ctx, r.stopGrace()+2*time.Second)
	defer cancel()

	res, err := r.Runtime.Exec(stopCtx, r.ContainerID, r.StopCommand(), runtime.ExecOptions{User: execUser})
	if err != nil {
		r.logEvent(audit.EventError, "stop recording: "+err.Error())
		return rec, errors.ContainerFailed("stop recording", err)
	}
	if res.ExitCode != 0 {
		logging.Warn("recording stop command failed",
			"container", r.ContainerID,
			"exit_code", res.ExitCode,
			"output", strings.TrimSpace(res.Stdout+res.Stderr))
	}

	r.logEvent(audit.EventRecordStop, rec.HostPath)
	return rec, nil
}

// Record runs fn while recording into name. The recording is stopped on
// every exit path, including a panic in fn or cancellation of ctx.
func (r *Recorder) Record(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	if !r.Enabled {
		return fn(ctx)
	}

	if _, err := r.Start(ctx, name); err != nil {
		return err
	}

	defer func() {
		rec, stopErr := r.Stop(context.WithoutCancel(ctx))
		if stopErr != nil {
			logging.Warn("failed to stop recording", "container", r.ContainerID, "error", stopErr)
			return
		}
		logging.UserInfo("Video recorded: %s", rec.HostPath)
	}()

	return fn(ctx)
}

func (r *Recorder) logEvent(t audit.EventType, details string) {
	if r.Audit == nil || r.Session == "" {
		return
	}
	if err := r.Audit.LogEvent(t, r.Session, r.ContainerID, details); err != nil {
		logging.Debug("failed to write audit event", "error", err)
	}
}
