package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload a document for indexing",
	Long: `Uploads a PDF, DOCX, TXT, Markdown or HTML file. The server extracts its
text, splits it into chunks and stores one embedding per chunk.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := newRetriever().Upload(cmd.Context(), args[0], f)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	cmd.Printf("%s: %d chunks, ids %v\n", res.Message, res.Chunks, res.IDs)
	return nil
}
