package shim

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/containerd/log"
)

// proc tracks the interpreter process of one task
type proc struct {
	pid int

	// done is cancelled once the process has exited and exitStatus and
	// exitTime are set
	done       context.Context
	exitTime   time.Time
	exitStatus int

	stdout string
	stdin  string
}

func (p *proc) exited() bool {
	return p.done.Err() != nil
}

func (p *proc) String() string {
	if p.exited() {
		return fmt.Sprintf("pid:%d, exitTime:%s, exitStatus:%d", p.pid, p.exitTime.Format(time.RFC3339), p.exitStatus)
	}
	return fmt.Sprintf("pid:%d running", p.pid)
}

// exitStatus maps the state of a finished command to a shell style exit
// status. The interpreter's own exit codes pass through unchanged.
func exitStatus(cmd *exec.Cmd) (int, bool) {
	if cmd.ProcessState == nil {
		return 255, false
	}
	if cmd.ProcessState.Exited() {
		return cmd.ProcessState.ExitCode(), true
	}
	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return exitCodeSignal + int(ws.Signal()), true
	}
	return 255, true
}

type finalizer struct {
	done func()
	cmd  *exec.Cmd
	s    *taskService
	id   string
}

// schedule waits for the process in the background. It returns once the
// waiting goroutine is running.
func (f *finalizer) schedule(ctx context.Context) {
	ready := make(chan struct{})
	go f.finalize(ctx, ready)
	<-ready
}

func (f *finalizer) finalize(ctx context.Context, ready chan<- struct{}) {
	close(ready)

	pid := f.cmd.Process.Pid
	if err := f.cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			log.G(ctx).WithError(err).Errorf("failed to wait for interpreter process %d", pid)
		}
	}

	status, ok := exitStatus(f.cmd)
	if !ok {
		log.G(ctx).Warn("interpreter process wait returned without setting process state")
	}
	log.G(ctx).WithFields(log.Fields{"pid": pid, "status": status}).Debug("interpreter process exited")

	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	if p, ok := f.s.procs[f.id]; ok {
		p.exitStatus = status
		p.exitTime = time.Now()
	} else {
		log.G(ctx).Errorf("failed to write final status of interpreter process %d: task was removed", pid)
	}
	f.done()

	if f.s.allExited() {
		log.G(ctx).Debug("all procs exited. shutting down the shim")
		f.s.shutdown.Shutdown()
	}
}
