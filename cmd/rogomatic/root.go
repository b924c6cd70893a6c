package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rogomatic/rogomatic/internal/launcher"
	"github.com/rogomatic/rogomatic/internal/options"
)

// newRootCmd builds the command line. run receives the parsed request.
// Single-letter flags can be bundled, e.g. "rogomatic -ceu".
func newRootCmd(run func(req launcher.Request) error) *cobra.Command {
	var (
		req   launcher.Request
		watch bool
	)
	req.Flags = options.Defaults()

	cmd := &cobra.Command{
		Use:   "rogomatic [flags] [file]",
		Short: "Play Rogue with the Rog-O-Matic player",
		Long: `rogomatic starts Rogue under a pseudo-terminal and hands it to the
player program, which plays the game by reading the screen and typing.

With -p the optional file is a log to replay, with -s a Rogue version whose
scores are listed; otherwise it is passed to Rogue as its initial file.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.Arg = args[0]
			}
			req.Flags.NoTerminal = !watch
			return run(req)
		},
	}

	addLaunchFlags(cmd.Flags(), &req, &watch)
	return cmd
}

// addLaunchFlags registers the one-letter launcher flags on f.
func addLaunchFlags(f *pflag.FlagSet, req *launcher.Request, watch *bool) {
	f.SortFlags = false
	f.BoolVarP(&req.Flags.Cheat, "cheat", "c", false, "use trap arrows")
	f.BoolVarP(&req.Flags.DebugTrace, "debug", "D", false, "trace the player and the launcher")
	f.BoolVarP(&req.Flags.Echo, "echo", "e", false, "echo the game to the roguelog")
	f.StringVarP(&req.ExplicitTarget, "file", "f", "", "Rogue executable to play")
	f.BoolVarP(&req.Flags.NoHalftime, "no-halftime", "h", false, "skip the halftime summary")
	f.IntVarP(&req.Flags.MoveRate, "move-rate", "m", 0, "moves per second (0 = unlimited)")
	f.BoolVarP(&req.Replay, "replay", "p", false, "replay a roguelog instead of playing")
	f.BoolVarP(&req.SavedGame, "restore", "r", false, "resume the saved game")
	f.BoolVarP(&req.ScoreOnly, "scores", "s", false, "list scores and exit")
	f.BoolVarP(&req.Flags.Terse, "terse", "t", false, "show status lines only")
	f.BoolVarP(&req.Flags.User, "user", "u", false, "start in user mode")
	f.BoolVarP(watch, "watch", "w", false, "show the game on this terminal")
	f.BoolVarP(&req.Flags.Emacs, "emacs", "E", false, "emacs mode")
	// -h belongs to no-halftime; help is long-form only.
	f.Bool("help", false, "help for rogomatic")
}
