package cmd

import (
	"fmt"
	"strings"

	domainPinterest "github.com/AzielCF/az-sticker/domains/pinterest"
	"github.com/AzielCF/az-sticker/validations"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Resolve a Pinterest query to a local image or GIF",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate <query>",
	Short: "Drop the cached results of a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInvalidate,
}

func init() {
	searchCmd.Flags().Bool("gif", false, "search animated GIFs instead of images")
	invalidateCmd.Flags().Bool("gif", false, "invalidate the GIF cache instead of the image one")
	rootCmd.AddCommand(searchCmd, invalidateCmd)
}

func namespaceFlag(cmd *cobra.Command) domainPinterest.Namespace {
	if gif, _ := cmd.Flags().GetBool("gif"); gif {
		return domainPinterest.NamespaceGif
	}
	return domainPinterest.NamespaceImage
}

func runSearch(cmd *cobra.Command, args []string) error {
	request := domainPinterest.SearchRequest{
		Query:     strings.Join(args, " "),
		Namespace: namespaceFlag(cmd),
	}
	if err := validations.ValidateSearchRequest(cmd.Context(), &request); err != nil {
		return err
	}

	result, err := searchUsecase.Resolve(cmd.Context(), request.Namespace, request.Query)
	if err != nil {
		return err
	}

	source := "fetched"
	if result.FromCache {
		source = "cached"
	}
	logrus.Debugf("[PINTEREST] %s result for %q", source, request.Query)
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", result.Record.Kind, source, result.Record.Location)
	return nil
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	existed, err := searchUsecase.Invalidate(cmd.Context(), namespaceFlag(cmd), query)
	if err != nil {
		return err
	}
	if existed {
		fmt.Fprintf(cmd.OutOrStdout(), "removed %q\n", query)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "no cached entry for %q\n", query)
	}
	return nil
}
