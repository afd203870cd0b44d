package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "retrieve [message]",
		Short: "Run retrieval for a message and show the scoring trace",
		Long:  "Runs the full scoring pipeline for a message without chatting, printing every candidate's similarity, boost, and verdict.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRetrieve,
	}
	RootCmd.AddCommand(cmd)
}

func runRetrieve(cmd *cobra.Command, args []string) {
	folder, _, err := openCharacter()
	if err != nil {
		exitErr("open character", err)
	}

	// The whole point of this command is the trace.
	s := settings
	s.DebugMode = true

	message := strings.Join(args, " ")
	selected, trace := newRetriever(folder).Retrieve(cmd.Context(), message, s)

	for _, line := range trace {
		fmt.Println(line)
	}
	if len(selected) == 0 {
		return
	}
	fmt.Println()
	for _, m := range selected {
		fmt.Printf("[%s] %s\n", m.MemoryID, m.PromptText)
	}
}
