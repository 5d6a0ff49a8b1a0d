// Package procrunner implements the default collab.ProcessRunner: it spawns
// a server-list "program" clause (spec.md §4.6 step 2) as a detached
// sub-process, pipes its stdout/stderr into the agent log, and never waits
// on it directly.
package procrunner

import (
	"bufio"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
	"github.com/tliron/commonlog"

	"wsagentcfg/internal/collab"
)

var log = commonlog.GetLogger("wsagentcfg.procrunner")

// Runner is the default collab.ProcessRunner: commandLine is split with
// /bin/sh -c so the grammar's program clause can use shell redirection and
// quoting the same way a human would type it on a terminal.
type Runner struct {
	mu   deadlock.Mutex
	live map[uuid.UUID]*process
}

// New returns a Runner with an empty live-process table.
func New() *Runner {
	return &Runner{live: make(map[uuid.UUID]*process)}
}

type process struct {
	id  uuid.UUID
	cmd *exec.Cmd

	mu      sync.Mutex
	exitCbs []func(error)
	exited  bool
	waitErr error
}

// Spawn starts commandLine under /bin/sh -c and returns a handle before the
// process has necessarily produced any output. The process is tracked in the
// runner's live table until it exits.
func (r *Runner) Spawn(commandLine string) (collab.Process, error) {
	cmd := exec.Command("/bin/sh", "-c", commandLine)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	p := &process{id: id, cmd: cmd}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.live[id] = p
	r.mu.Unlock()

	go pipeLines(stdout, func(line string) {
		log.Infof("%s (stdout): %s", commandLine, line)
	})
	go pipeLines(stderr, func(line string) {
		log.Infof("%s (stderr): %s", commandLine, line)
	})

	go func() {
		waitErr := cmd.Wait()

		r.mu.Lock()
		delete(r.live, id)
		r.mu.Unlock()

		p.mu.Lock()
		p.exited = true
		p.waitErr = waitErr
		cbs := p.exitCbs
		p.mu.Unlock()
		for _, cb := range cbs {
			cb(waitErr)
		}
	}()

	return p, nil
}

func pipeLines(r interface {
	Read(p []byte) (int, error)
}, emit func(string)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		emit(scanner.Text())
	}
}

// OnExit registers cb to run once the process exits. If the process has
// already exited by the time OnExit is called, cb runs immediately with the
// recorded exit error.
func (p *process) OnExit(cb func(error)) {
	p.mu.Lock()
	if p.exited {
		err := p.waitErr
		p.mu.Unlock()
		cb(err)
		return
	}
	p.exitCbs = append(p.exitCbs, cb)
	p.mu.Unlock()
}

// Kill sends SIGKILL to the process.
func (p *process) Kill() error {
	return p.cmd.Process.Kill()
}
