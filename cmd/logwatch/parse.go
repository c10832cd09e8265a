package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"logwatch/internal/cli"
	"logwatch/internal/config"
	"logwatch/internal/version"
)

const defaultRoot = "."

type Options struct {
	Root string
}

// parseArgs accepts an optional directory and --help. Help goes to out and
// parse failures to errOut.
func parseArgs(args []string, out, errOut io.Writer) (Options, error) {
	fs := flag.NewFlagSet("logwatch", flag.ContinueOnError)
	fs.SetOutput(errOut)
	help := cli.AddHelpFlags(fs, "Show this help message")
	fs.Usage = func() {
		printUsage(fs.Output())
	}

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if help.Help {
		printUsage(out)
		return Options{}, flag.ErrHelp
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return Options{}, errors.New("too many arguments")
	}

	root := defaultRoot
	if fs.NArg() == 1 {
		root = fs.Arg(0)
	}
	return Options{Root: root}, nil
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: logwatch [directory]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Recursively watch a directory and log file and directory activity.")
	fmt.Fprintln(out, "Each event is appended to the activity log and echoed to stdout.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Arguments:")
	writeOption(out, "directory", "Directory to watch (default: .)")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
	writeOption(out, "--help", "Show this help message")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Environment:")
	writeOption(out, config.EnvConfigFile, "YAML config file")
	writeOption(out, "LOGWATCH_LOG_FILE", "Activity log file (default: logwatch.log)")
	writeOption(out, "LOGWATCH_MAX_WATCHES", "Maximum watched directories (default: 1024)")
	writeOption(out, "LOGWATCH_THROTTLE_WINDOW", "Minimum gap between logged accesses of a path (default: 3s)")
	writeOption(out, "LOGWATCH_THROTTLE_CAPACITY", "Paths tracked by the access throttle (default: 256)")
	writeOption(out, "LOGWATCH_THROTTLE_POLICY", "none or lru (default: none)")
	writeOption(out, "LOGWATCH_BACKEND", "inotify or fsnotify")
	writeOption(out, "LOGWATCH_LOG_LEVEL", "debug, info, warning or error (default: info)")
	writeOption(out, "LOGWATCH_METRICS_FILE", "Write Prometheus counters here on exit")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Exit codes:")
	fmt.Fprintln(out, "  0  Success")
	fmt.Fprintln(out, "  1  Notification facility unavailable")
	fmt.Fprintln(out, "  2  Usage or configuration error")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, version.String("logwatch"))
}

func writeOption(out io.Writer, name, desc string) {
	fmt.Fprintf(out, "  %-28s %s\n", name, desc)
}
