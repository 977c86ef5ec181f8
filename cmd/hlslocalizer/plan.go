package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/agleyzer/hlslocalizer/internal/localizer"
	"github.com/agleyzer/hlslocalizer/internal/playlist"
	"github.com/agleyzer/hlslocalizer/internal/registry"
	"github.com/spf13/cobra"
)

// addSelectionFlags registers the stream selection flags shared by plan and serve.
func addSelectionFlags(cmd *cobra.Command, options *localizer.Options) {
	flags := cmd.Flags()
	flags.IntVar(&options.VideoHeight, "video-height", 0, "Preferred minimum video height (0 selects the highest bandwidth)")
	flags.IntVar(&options.VideoBitrate, "video-bitrate", 0, "Preferred minimum video BANDWIDTH (0 selects the highest bandwidth)")
	flags.StringSliceVar(&options.VideoCodecs, "video-codec", nil, "Allowed video codec tags (default hvc1,hev1,avc1)")
	flags.StringSliceVar(&options.AudioCodecs, "audio-codec", nil, "Allowed audio codec tags (default ec-3,ac-3,mp4a)")
	flags.StringSliceVar(&options.AudioLanguages, "audio-lang", nil, "Audio languages to select (default: the playlist's default rendition)")
	flags.BoolVar(&options.AllAudioLanguages, "all-audio", false, "Select every audio language")
	flags.StringSliceVar(&options.TextLanguages, "text-lang", nil, "Subtitle languages to select")
	flags.BoolVar(&options.AllTextLanguages, "all-text", false, "Select every subtitle language")
}

func newPlanCommand() *cobra.Command {
	var (
		options localizer.Options
		itemID  string
		outDir  string
	)

	cmd := &cobra.Command{
		Use:   "plan [flags] <playlist-url>",
		Short: "Select streams and list the files needed to play an HLS item offline",
		Example: `  hlslocalizer plan https://example.com/master.m3u8
  hlslocalizer plan --video-height 720 --audio-lang en,fr --out ./item https://example.com/master.m3u8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd)

			loc, err := localizer.New(nil, options, logger)
			if err != nil {
				return err
			}

			if itemID == "" {
				itemID = registry.NewItemID()
			}

			logger.Info("fetching source playlist", "url", args[0])
			plan, err := loc.Localize(cmd.Context(), itemID, args[0])
			if err != nil {
				return fmt.Errorf("failed to build plan: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORDER\tTYPE\tDESTINATION\tURL")
			for _, t := range plan.Tasks {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.Order, t.Type, t.Destination, t.ContentURL)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if outDir != "" {
				if err := writePlaylists(outDir, plan); err != nil {
					return err
				}
				logger.Info("wrote localized playlists", "dir", outDir, "media", len(plan.Media))
			}

			logger.Info("plan ready",
				"item", plan.ItemID,
				"tasks", len(plan.Tasks),
				"duration", plan.Duration,
				"estimated_bytes", plan.EstimatedSize)
			return nil
		},
	}

	addSelectionFlags(cmd, &options)
	cmd.Flags().StringVar(&itemID, "id", "", "Item ID (random if not set)")
	cmd.Flags().StringVar(&outDir, "out", "", "Directory to write the localized playlists to")

	return cmd
}

// writePlaylists writes the plan's master and media playlists under dir.
func writePlaylists(dir string, plan *localizer.Plan) error {
	files := map[string]string{playlist.MasterName: plan.Master}
	for path, text := range plan.Media {
		files[path] = text
	}

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		target := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		if err := os.WriteFile(target, []byte(files[path]), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}
