package cmd

import (
	"github.com/spf13/cobra"

	"github.com/natsukawa/anitrack/internal/playback"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rewatch the last seen episode",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		show, err := store.LastSeen()
		if err != nil {
			return err
		}
		if show == nil {
			cmd.Println("No last seen entry yet. Run `anitrack start` first.")
			return nil
		}

		cmd.Println("Replaying last seen episode:")
		cmd.Printf("  Title: %s\n", show.Title)
		cmd.Printf("  Episode: %s\n", show.LastEpisode)

		out, err := newController().RunReplay(cmd.Context(), *show, nil)
		if err != nil {
			cmd.Printf("Replay failed: %v\n", err)
			cmd.Println("Progress not updated.")
			return nil
		}
		if !out.Success {
			cmd.Println(playback.FailureMessage(out))
			return nil
		}

		updated := out.FinalEpisode
		if updated == "" {
			updated = show.LastEpisode
		}
		if err := store.Upsert(show.ShowID, show.Title, updated); err != nil {
			return err
		}
		cmd.Printf("Replay finished: %s now on episode %s\n", show.Title, updated)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
