package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/petrijr/seqflow"
)

const helpText = `commands:
  prime start [min] [max]     start (or restart) the prime scan
  fib start [max]             start (or restart) the Fibonacci run
  <prime|fib> pause           pause the current worker
  <prime|fib> resume          resume a paused worker
  <prime|fib> stop            cancel the current worker
  <prime|fib> restart         start again with the last parameters
  status                      show both slots
  history [prime|fib]         list recorded runs
  events <worker-id>          list the events of one run
  wait                        block until no worker is active
  quit                        stop everything and exit
`

// syncWriter serializes writes from the shell and the value printer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *syncWriter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s, format, args...)
}

type shell struct {
	// ctx scopes the workers started from the shell.
	ctx    context.Context
	runner *seqflow.Runner
	out    *syncWriter
}

func (sh *shell) printf(format string, args ...any) {
	sh.out.printf(format, args...)
}

func taskName(s string) (string, bool) {
	switch strings.ToLower(s) {
	case "prime", "primes":
		return seqflow.TaskPrimes, true
	case "fib", "fibonacci":
		return seqflow.TaskFibonacci, true
	default:
		return "", false
	}
}

// exec runs one command line. quit reports that the shell should exit.
func (sh *shell) exec(line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch cmd := strings.ToLower(fields[0]); cmd {
	case "quit", "exit":
		return true, nil
	case "help", "?":
		sh.printf("%s", helpText)
		return false, nil
	case "status":
		sh.status()
		return false, nil
	case "history":
		task := ""
		if len(fields) > 1 {
			t, ok := taskName(fields[1])
			if !ok {
				return false, fmt.Errorf("unknown task %q", fields[1])
			}
			task = t
		}
		return false, sh.history(task)
	case "wait":
		return false, sh.runner.Wait(sh.ctx)
	case "events":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: events <worker-id>")
		}
		return false, sh.events(fields[1])
	}

	task, ok := taskName(fields[0])
	if !ok {
		return false, fmt.Errorf("unknown command %q (try help)", fields[0])
	}
	if len(fields) < 2 {
		return false, fmt.Errorf("usage: %s start|pause|resume|stop|restart", fields[0])
	}
	return false, sh.control(task, strings.ToLower(fields[1]), fields[2:])
}

func (sh *shell) control(task, action string, args []string) error {
	if action == "start" {
		return sh.start(task, args)
	}

	slot, err := sh.runner.Slot(task)
	if err != nil {
		return err
	}
	switch action {
	case "pause":
		slot.Pause()
	case "resume":
		slot.Resume()
	case "stop", "cancel":
		slot.Cancel()
	case "restart":
		return slot.Restart(sh.ctx)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

func (sh *shell) start(task string, args []string) error {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch task {
	case seqflow.TaskPrimes:
		if len(args) > 2 {
			return fmt.Errorf("usage: prime start [min] [max]")
		}
		return sh.runner.StartPrimes(sh.ctx, arg(0), arg(1))
	default:
		if len(args) > 1 {
			return fmt.Errorf("usage: fib start [max]")
		}
		return sh.runner.StartFibonacci(sh.ctx, arg(0))
	}
}

func (sh *shell) status() {
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tSTATE\tWORKER\tPARAMS\tCONTROLS")
	for _, st := range sh.runner.Status() {
		id := st.WorkerID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", st.Task, st.State, id, st.Params, controlsText(st.Controls))
	}
	_ = tw.Flush()
}

func controlsText(c seqflow.Controls) string {
	var names []string
	for _, e := range []struct {
		on   bool
		name string
	}{
		{c.Start, "start"},
		{c.Pause, "pause"},
		{c.Resume, "resume"},
		{c.Stop, "stop"},
		{c.Restart, "restart"},
	} {
		if e.on {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, ",")
}

func (sh *shell) history(task string) error {
	runs, err := sh.runner.Runs(sh.ctx, task)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		sh.printf("no runs\n")
		return nil
	}

	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKER\tTASK\tSTATE\tVALUES\tLAST\tSTARTED\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID, r.Task, r.State, r.Values, r.LastValue,
			r.StartedAt.Format(time.TimeOnly), r.Err)
	}
	return tw.Flush()
}

func (sh *shell) events(workerID string) error {
	events, err := sh.runner.Events(sh.ctx, workerID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		sh.printf("no events\n")
		return nil
	}

	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tAT\tTYPE\tDETAIL")
	for _, ev := range events {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", ev.Seq, ev.At.Format(time.StampMilli), ev.Type, ev.Detail)
	}
	return tw.Flush()
}
