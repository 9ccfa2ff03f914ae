package cmd

import (
	"fmt"

	domainInstagram "github.com/AzielCF/az-sticker/domains/instagram"
	"github.com/spf13/cobra"
)

var instagramCmd = &cobra.Command{
	Use:   "instagram <url>",
	Short: "Download every media item of an Instagram post",
	Args:  cobra.ExactArgs(1),
	RunE:  runInstagram,
}

func init() {
	rootCmd.AddCommand(instagramCmd)
}

func runInstagram(cmd *cobra.Command, args []string) error {
	result, err := instagramUsecase.Download(cmd.Context(), domainInstagram.DownloadRequest{URL: args[0]})
	if err != nil {
		return err
	}

	for _, f := range result.Files {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", f.Type, f.HumanSize, f.FilePath)
	}
	return nil
}
