package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query [prompt]",
	Short: "Find the chunks nearest to a prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	for _, c := range []*cobra.Command{queryCmd, askCmd} {
		c.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (0 = server default)")
		c.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
		rootCmd.AddCommand(c)
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	results, err := newRetriever().Retrieve(cmd.Context(), args[0], queryTopK)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if queryJSON {
		return printJSON(cmd, map[string]any{"results": results})
	}
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for i, r := range results {
		cmd.Printf("[%d] %s\n", i+1, r)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	res, err := newRetriever().Ask(cmd.Context(), args[0], queryTopK)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	if queryJSON {
		return printJSON(cmd, res)
	}
	cmd.Println(res.Answer)
	if len(res.Results) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i, r := range res.Results {
			cmd.Printf("[%d] %s\n", i+1, r)
		}
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
