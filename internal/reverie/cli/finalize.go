package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bcraddock/reverie/internal/reverie/finalize"
)

func init() {
	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Build the memory index for a character folder",
		Long:  "Validates every memory file against its template, embeds the search text, and writes memory_index.bin and memory_mapping.json.",
		Run:   runFinalize,
	}
	RootCmd.AddCommand(cmd)
}

func runFinalize(cmd *cobra.Command, args []string) {
	folder, _, err := openCharacter()
	if err != nil {
		exitErr("open character", err)
	}

	fin := &finalize.Finalizer{
		Folder:   folder,
		Embedder: newEmbedder(),
		Counter:  newCounter(),
	}
	res, err := fin.Run(cmd.Context())
	if err != nil {
		exitErr("finalize", err)
	}
	fmt.Printf("indexed %d memories (%d skipped)\n", res.Indexed, res.Skipped)
}
