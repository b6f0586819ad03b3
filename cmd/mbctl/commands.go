package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"magicband-controller/internal/actions"
	"magicband-controller/internal/core"
	"magicband-controller/internal/dispatch"
	"magicband-controller/internal/palette"
)

type options struct {
	url       string
	vib       int
	wakeDelay time.Duration
	timeout   time.Duration
	verbose   bool
}

// logNotifier prints dispatcher feedback instead of showing toasts.
type logNotifier struct{}

func (logNotifier) Notify(message string, ok bool) {
	if ok {
		log.Info().Msg(message)
	} else {
		log.Error().Msg(message)
	}
}

func (logNotifier) SetControlsDisabled(bool) {}

func defaultURL() string {
	if u := os.Getenv("MAGICBAND_URL"); u != "" {
		return u
	}
	return "http://192.168.4.1"
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "mbctl",
		Short:         "Send commands to a MagicBand broadcaster",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.url, "url", defaultURL(), "Broadcaster base URL (env MAGICBAND_URL)")
	root.PersistentFlags().IntVar(&opts.vib, "vib", 0, "Vibration pattern, 0 for none")
	root.PersistentFlags().DurationVar(&opts.wakeDelay, "wake-delay", dispatch.DefaultWakeDelay, "Delay between the wake probe and the command")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "HTTP timeout, 0 for none")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")

	action := func(use, short string, a core.Action, nargs int, keys ...string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(nargs),
			RunE: func(cmd *cobra.Command, args []string) error {
				in := actions.Args{}
				for i, key := range keys {
					in[key] = args[i]
				}
				return run(cmd, opts, a, in)
			},
		}
	}

	root.AddCommand(
		action("preset <color>", "Solid preset color by name", core.ActionPreset, 1, "color"),
		action("dual <inner> <outer>", "Two-zone colors, #RRGGBB", core.ActionDual, 2, "inner", "outer"),
		action("crossfade <a> <b>", "Crossfade between two colors, #RRGGBB", core.ActionCrossfade, 2, "a", "b"),
		action("rainbow <c1> <c2> <c3> <c4> <c5>", "Five-color rainbow, #RRGGBB", core.ActionRainbow, 5, "r1", "r2", "r3", "r4", "r5"),
		action("circle", "Circle animation", core.ActionCircle, 0),
		action("ping", "Wake the broadcaster", core.ActionPing, 0),
		action("manual <body>", "Send a raw form body, e.g. action=preset&color=red&vib=0", core.ActionManual, 1, "text"),
		newClosestCmd(),
	)
	return root
}

func run(cmd *cobra.Command, opts *options, a core.Action, args actions.Args) error {
	if opts.vib > 0 {
		args["vibrate"] = "true"
		args["pattern"] = strconv.Itoa(opts.vib)
	}

	client := dispatch.NewClient(opts.url, &http.Client{Timeout: opts.timeout})
	d := dispatch.NewDispatcher(client, logNotifier{}, nil, opts.wakeDelay)
	registry := actions.NewRegistry(actions.NewController(core.NewPanelState(), d, logNotifier{}))

	log.Debug().Str("endpoint", client.Endpoint()).Str("action", string(a)).Interface("args", args).Msg("Sending")
	text, err := registry.Run(cmd.Context(), a, args)
	if err != nil {
		return err
	}
	if text != "" {
		fmt.Fprintln(cmd.OutOrStdout(), text)
	}
	return nil
}

func newClosestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "closest <#RRGGBB>...",
		Short: "Print the palette code each color maps to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, hex := range args {
				if _, _, _, err := palette.Parse(hex); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", hex, palette.Closest(hex))
			}
			return nil
		},
	}
}
