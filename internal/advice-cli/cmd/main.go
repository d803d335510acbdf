// Command soil-advice normalizes soil advice reports from a file, stdin or
// an interactive paste loop and prints the seven field record as JSON.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LeonardoBeccarini/soil_advisor/internal/advice"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/logger"
)

func main() {
	cmd := newRootCommand(os.Stdin, os.Stdout)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	strict      bool
	interactive bool
	source      bool
	verbose     bool
}

func newRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "soil-advice [file]",
		Short:         "Normalize a soil advice report into its seven fields",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			logger.Init(logger.Config{Level: level, Output: cmd.ErrOrStderr()})

			mode := advice.ModeCompat
			if opts.strict {
				mode = advice.ModeStrict
			}
			n := advice.New(mode)

			if opts.interactive {
				return runInteractive(n, opts, in, out)
			}
			raw, err := readInput(in, args)
			if err != nil {
				return err
			}
			return printAdvice(out, n, opts, raw)
		},
	}
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Send JSON that is not an object to the line parser")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Paste reports line by line; DONE normalizes, quit exits")
	cmd.Flags().BoolVar(&opts.source, "source", false, "Also print which parser handled the input")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging on stderr")
	return cmd
}

func readInput(in io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read %s: %w", args[0], err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}

// runInteractive buffers pasted lines until DONE, then normalizes the buffer.
// quit or end of input stops the loop.
func runInteractive(n advice.Normalizer, opts options, in io.Reader, out io.Writer) error {
	const prompt = `Paste the advice report (multi-line supported). Type "DONE" when finished, "quit" to exit:`

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	fmt.Fprintln(out, prompt)

	var buf []string
	for sc.Scan() {
		line := sc.Text()
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "quit":
			return nil
		case "done":
			if err := printAdvice(out, n, opts, strings.Join(buf, "\n")); err != nil {
				return err
			}
			buf = buf[:0]
			fmt.Fprintln(out, "\n"+prompt)
		default:
			buf = append(buf, line)
		}
	}
	return sc.Err()
}

func printAdvice(out io.Writer, n advice.Normalizer, opts options, raw string) error {
	parsed, src := n.ParseWithSource(raw)
	logger.Default().Debug("advice normalized", "source", src, "mode", n.Mode.String(), "bytes", len(raw))

	var v interface{} = parsed
	if opts.source {
		v = struct {
			Source advice.Source `json:"source"`
			Advice interface{}   `json:"advice"`
		}{src, parsed}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
