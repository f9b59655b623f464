package cmd

import (
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run an interactive ani-cli session and record what gets watched",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		message, _, err := newController().RunSearch(store)
		if err != nil {
			return err
		}
		cmd.Printf("\n%s\n", message)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
