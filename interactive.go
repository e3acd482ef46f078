package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"evtimesel/internal/eventtime"
	"evtimesel/internal/fdsnevent"
)

func newInteractiveCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"repl"},
		Short:   "Edit the builder form line by line with live event lookups",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "evtimesel> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return fmt.Errorf("failed to create readline: %w", err)
			}
			defer rl.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			logger := newLogger(cfg.LogLevel, rl.Stderr())
			client := fdsnevent.NewClient(cfg.EventURL, fdsnevent.WithTimeout(cfg.RequestTimeout))
			available := client.Available(ctx)
			if !available {
				logger.Warn("event service unavailable, event-based time selection disabled", "url", cfg.EventURL)
			}

			sess := newSession(cfg, client, logger, nil)
			defer sess.close()

			r := newREPL(sess, available, rl.Stdout())
			r.printHelp()
			r.run(ctx, rl)
			return nil
		},
	}
}

// repl drives one session from typed commands. Observer callbacks run on lookup
// goroutines, so all output goes through print.
type repl struct {
	sess      *session
	available bool

	mu         sync.Mutex
	out        io.Writer
	lastWindow [2]string
}

func newREPL(sess *session, available bool, out io.Writer) *repl {
	r := &repl{sess: sess, available: available, out: out}
	sess.form.OnStatus(r.onStatus)
	sess.form.OnChange(r.onChange)
	return r
}

func (r *repl) print(format string, a ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, a...)
}

func (r *repl) onStatus(st eventtime.Status) {
	if st.Kind == eventtime.StatusNone {
		return
	}
	r.print("[%s] %s\n", st.Kind, st.Message)
}

func (r *repl) onChange(snap eventtime.Snapshot) {
	window := [2]string{snap.Get(eventtime.FieldStartTime), snap.Get(eventtime.FieldEndTime)}

	r.mu.Lock()
	defer r.mu.Unlock()
	if window == r.lastWindow {
		return
	}
	r.lastWindow = window
	if window[0] == "" && window[1] == "" {
		return
	}
	fmt.Fprintf(r.out, "window: %s → %s\n", orDefault(window[0], "-"), orDefault(window[1], "-"))
}

func (r *repl) run(ctx context.Context, rl *readline.Instance) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			r.print("Exiting...\n")
			return
		}
		if !r.dispatch(line) {
			return
		}
	}
}

// dispatch executes one command line. It returns false when the user quits.
func (r *repl) dispatch(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	value := strings.Join(parts[1:], " ")

	switch cmd {
	case "help", "?":
		r.printHelp()

	case "quit", "exit", "q":
		return false

	case "id", "eventid":
		if !r.available {
			r.print("event service unavailable\n")
			return true
		}
		r.sess.ctrl.HandleEdit(eventtime.FieldEventID, value)

	case "before", "after":
		r.sess.ctrl.HandleEdit(eventtime.Field(cmd), value)

	case "start", "starttime":
		r.sess.ctrl.HandleEdit(eventtime.FieldStartTime, value)

	case "end", "endtime":
		r.sess.ctrl.HandleEdit(eventtime.FieldEndTime, value)

	case "clear":
		r.sess.ctrl.Clear()
		r.print("cleared\n")

	case "show":
		r.printForm()

	case "url":
		r.print("%s\n", previewURL(r.sess.form.Snapshot(), r.sess.dataselectBase))

	default:
		f, ok := knownField(cmd)
		if !ok {
			r.print("unknown command %q (type help)\n", cmd)
			return true
		}
		r.sess.ctrl.HandleEdit(f, value)
	}
	return true
}

func (r *repl) printForm() {
	// Read controller state before taking r.mu; observers run under the controller lock.
	res := r.sess.result()
	snap := r.sess.form.Snapshot()
	state := r.sess.ctrl.State()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range formFields {
		if v := snap.Get(f); v != "" {
			fmt.Fprintf(r.out, "  %-14s %s\n", f, v)
		}
	}
	fmt.Fprintf(r.out, "  %-14s %s\n", "state", state)
	if res.OriginTime != "" {
		fmt.Fprintf(r.out, "  %-14s %s\n", "origin", res.OriginTime)
	}
	if res.Status != "" {
		fmt.Fprintf(r.out, "  %-14s %s\n", "status", res.Status)
	}
}

func (r *repl) printHelp() {
	r.print(`Commands:
  id <eventid>        look up an event (debounced); "id" alone clears it
  before <minutes>    minutes before the origin time
  after <minutes>     minutes after the origin time
  net|sta|loc|cha <v> stream codes for the dataselect URL
  start|end <time>    edit the time window by hand
  clear               reset event id, offsets and time window
  show                print the form
  url                 print the dataselect URL
  help                this text
  quit                exit
`)
	if !r.available {
		r.print("Event service unavailable: event lookups are disabled.\n")
	}
}
