package cmd

import (
	"github.com/spf13/cobra"

	"github.com/natsukawa/anitrack/internal/playback"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Play the next episode of the last seen show",
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

		cmd.Println("Playing next episode for last seen show:")
		cmd.Printf("  Title: %s\n", show.Title)
		cmd.Printf("  Current stored episode: %s\n", show.LastEpisode)

		out, err := newController().RunContinue(*show, show.LastEpisode)
		if err != nil {
			cmd.Printf("ani-cli launch failed: %v\n", err)
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
		cmd.Printf("Updated progress: %s -> episode %s\n", show.Title, updated)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nextCmd)
}
