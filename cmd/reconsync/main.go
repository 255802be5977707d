// Command reconsync reconciles two storage endpoints against a remembered
// prior state (spec.md's bidirectional sync core, C1-C11).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/reconsync/reconsync/recon"

	_ "github.com/reconsync/reconsync/transport/backend/file"
	_ "github.com/reconsync/reconsync/transport/backend/memory"
	_ "github.com/reconsync/reconsync/transport/backend/s3"
	_ "github.com/reconsync/reconsync/transport/backend/sftp"
)

// cliArgs holds the parsed CLI surface from spec.md §6:
// <configpath>, --new, --dry-run, --interactive, --no-backup,
// --break-lock {A|B|both}, --reset-state, --override "KEY=VALUE", --debug.
type cliArgs struct {
	configPath  string
	newConfig   bool
	dryRun      bool
	interactive bool
	noBackup    bool
	breakLock   string
	resetState  bool
	overrides   []string
	debug       bool
}

// parseArgs scans os.Args manually rather than through the stdlib flag
// package, because <configpath> and the flags can appear in either order
// and flag.Parse stops at the first non-flag token.
func parseArgs(args []string) (cliArgs, error) {
	var out cliArgs
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch a {
		case "--new":
			out.newConfig = true
		case "--dry-run":
			out.dryRun = true
		case "--interactive":
			out.interactive = true
		case "--no-backup":
			out.noBackup = true
		case "--reset-state":
			out.resetState = true
		case "--debug":
			out.debug = true
		case "--break-lock":
			i++
			if i >= len(args) {
				return out, fmt.Errorf("--break-lock requires an argument: A, B, or both")
			}
			out.breakLock = args[i]
		case "--override":
			i++
			if i >= len(args) {
				return out, fmt.Errorf("--override requires a KEY=VALUE argument")
			}
			out.overrides = append(out.overrides, args[i])
		default:
			if out.configPath != "" {
				return out, fmt.Errorf("unexpected extra argument %q", a)
			}
			out.configPath = a
		}
	}
	if out.configPath == "" {
		return out, fmt.Errorf("missing <configpath>")
	}
	return out, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(rawArgs []string) int {
	args, err := parseArgs(rawArgs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reconsync:", err)
		return 1
	}

	level := slog.LevelInfo
	if args.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if args.newConfig {
		if err := writeNewConfig(args.configPath); err != nil {
			logger.Error("could not write new config", slog.Any("error", err))
			return 1
		}
		fmt.Println("wrote new config to", args.configPath)
		return 0
	}

	cfg, err := loadConfig(args.configPath)
	if err != nil {
		logger.Error("could not load config", slog.Any("error", err))
		return exitCode(err, args.debug)
	}

	settings, err := cfg.toSettings()
	if err != nil {
		logger.Error("could not build settings", slog.Any("error", err))
		return exitCode(err, args.debug)
	}
	settings.Logger = logger
	settings.DryRun = args.dryRun
	settings.Interactive = args.interactive
	settings.ResetState = settings.ResetState || args.resetState
	if args.noBackup {
		settings.Backup = false
	}
	for _, kv := range args.overrides {
		if err := settings.ApplyOverride(kv); err != nil {
			logger.Error("bad --override", slog.Any("error", err))
			return 1
		}
	}

	a, err := openEndpoint(cfg.RemoteA)
	if err != nil {
		logger.Error("could not open remote A", slog.Any("error", err))
		return exitCode(err, args.debug)
	}
	b, err := openEndpoint(cfg.RemoteB)
	if err != nil {
		logger.Error("could not open remote B", slog.Any("error", err))
		return exitCode(err, args.debug)
	}

	ctx := context.Background()

	if args.breakLock != "" {
		if err := recon.BreakLock(ctx, a, b, settings.Name, args.breakLock); err != nil {
			logger.Error("break-lock failed", slog.Any("error", err))
			return exitCode(err, args.debug)
		}
		fmt.Println("lock broken:", args.breakLock)
		return 0
	}

	result, err := recon.Run(ctx, a, b, settings)
	if err != nil {
		logger.Error("run failed", slog.Any("error", err))
		return exitCode(err, args.debug)
	}

	if result.DryRun {
		fmt.Printf("dry run: %d deletes(A) %d deletes(B) %d transfers(A->B) %d transfers(B->A)\n",
			len(result.Plan.DelA), len(result.Plan.DelB), len(result.Plan.TransA2B), len(result.Plan.TransB2A))
	} else {
		fmt.Printf("run complete in %s: %d files(A) %d files(B)\n",
			result.Duration, result.NextA.Len(), result.NextB.Len())
	}
	return 0
}

// exitCode maps a run error to the process exit code. Every error gives 1,
// except that with --debug a recon.KindTransportError gives 2; other kinds
// give 1 with or without --debug.
func exitCode(err error, debug bool) int {
	if !debug {
		return 1
	}
	if recon.IsKind(err, recon.KindTransportError) {
		return 2
	}
	return 1
}
