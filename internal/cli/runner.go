package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/g960059/cliprelay/internal/appclient"
	"github.com/g960059/cliprelay/internal/config"
)

type Runner struct {
	client *appclient.Client
	stdin  io.Reader
	out    io.Writer
	errOut io.Writer
}

const maxPushStdinBytes int64 = 16 << 20

var errStdinTooLarge = errors.New("stdin payload too large")

func NewRunner(addr string, out, errOut io.Writer) *Runner {
	return NewRunnerWithClient(appclient.New(addr), os.Stdin, out, errOut)
}

func NewRunnerWithClient(client *appclient.Client, stdin io.Reader, out, errOut io.Writer) *Runner {
	if client == nil {
		client = appclient.New(config.DefaultListenAddr)
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Runner{
		client: client,
		stdin:  stdin,
		out:    out,
		errOut: errOut,
	}
}

func (r *Runner) Run(ctx context.Context, args []string) int {
	addr, rest, err := parseGlobalArgs(args)
	if err != nil {
		_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 2
	}
	if addr != "" {
		r.client = appclient.New(addr)
	}
	if len(rest) == 0 {
		r.printUsage()
		return 2
	}
	switch rest[0] {
	case "push":
		return r.runPush(ctx, rest[1:])
	case "pull":
		return r.runPull(ctx, rest[1:])
	case "health":
		return r.runHealth(ctx, rest[1:])
	default:
		_, _ = fmt.Fprintf(r.errOut, "unknown command: %s\n", rest[0])
		r.printUsage()
		return 2
	}
}

// runPush sends its arguments joined by spaces, or stdin when none are
// given. tmux copy-pipe feeds the selection on stdin.
func (r *Runner) runPush(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("push", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	quiet := fs.Bool("quiet", false, "suppress the ack line")
	if err := fs.Parse(args); err != nil {
		_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 2
	}
	text := strings.Join(fs.Args(), " ")
	if fs.NArg() == 0 {
		payload, err := readStdin(r.stdin, maxPushStdinBytes)
		if err != nil {
			_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
			if errors.Is(err, errStdinTooLarge) {
				return 2
			}
			return 1
		}
		text = payload
	}
	if err := r.client.Push(ctx, text); err != nil {
		return r.handleErr(err)
	}
	if !*quiet {
		_, _ = fmt.Fprintf(r.out, "pushed %d bytes\n", len(text))
	}
	return 0
}

func (r *Runner) runPull(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("pull", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	newline := fs.Bool("n", false, "append a newline when text was pending")
	if err := fs.Parse(args); err != nil {
		_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 2
	}
	text, err := r.client.Pull(ctx)
	if err != nil {
		return r.handleErr(err)
	}
	_, _ = io.WriteString(r.out, text)
	if *newline && text != "" {
		_, _ = fmt.Fprintln(r.out)
	}
	return 0
}

func (r *Runner) runHealth(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	jsonOut := fs.Bool("json", false, "output JSON")
	if err := fs.Parse(args); err != nil {
		_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 2
	}
	health, err := r.client.Health(ctx)
	if err != nil {
		return r.handleErr(err)
	}
	if *jsonOut {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(health)
		return 0
	}
	pending := "empty"
	if health.Pending {
		pending = "pending"
	}
	_, _ = fmt.Fprintf(r.out, "%s\t%s\tversion=%d\t%s\n", health.Status, health.InstanceID, health.MailboxVersion, pending)
	return 0
}

func readStdin(in io.Reader, limit int64) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(in, limit+1))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if int64(len(raw)) > limit {
		return "", fmt.Errorf("%w: limit is %d bytes", errStdinTooLarge, limit)
	}
	return string(raw), nil
}

// parseGlobalArgs consumes global flags up to the subcommand. Everything
// after the subcommand belongs to it, so push text may contain "--addr".
func parseGlobalArgs(args []string) (string, []string, error) {
	addr := ""
	i := 0
	for i < len(args) && args[i] == "--addr" {
		if i+1 >= len(args) {
			return "", nil, fmt.Errorf("--addr requires value")
		}
		addr = args[i+1]
		i += 2
	}
	return addr, args[i:], nil
}

func (r *Runner) handleErr(err error) int {
	_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
	return 1
}

func (r *Runner) printUsage() {
	_, _ = fmt.Fprintln(r.errOut, "usage: cliprelay [--addr <host:port>] <push|pull|health> ...")
}
