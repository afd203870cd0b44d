package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bcraddock/reverie/internal/reverie/session"
)

func init() {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect saved and archived sessions",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved sessions, newest first",
		Run:   runSessionsList,
	}

	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Print a saved session transcript",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionsShow,
	}

	recentCmd := &cobra.Command{
		Use:   "recent [character]",
		Short: "List archived session summaries for a character",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionsRecent,
	}
	recentCmd.Flags().IntP("limit", "l", 10, "Max entries")

	sessionsCmd.AddCommand(listCmd, showCmd, recentCmd)
	RootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) {
	sessions, err := session.List(settings.SessionDir)
	if err != nil {
		exitErr("list sessions", err)
	}
	for _, s := range sessions {
		fmt.Printf("%s  %-20s  %d turns  %s\n",
			s.ID, s.CharacterName, len(s.History), s.UpdatedAt.Format("2006-01-02 15:04"))
	}
}

func runSessionsShow(cmd *cobra.Command, args []string) {
	s, err := session.Load(settings.SessionDir, args[0])
	if err != nil {
		exitErr("load session", err)
	}
	fmt.Printf("session %s with %s\n\n", s.ID, s.CharacterName)
	for _, m := range s.History {
		fmt.Printf("%s: %s\n", m.Role, m.Content)
	}
}

func runSessionsRecent(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	archive, err := session.OpenArchive(archivePath(), nil)
	if err != nil {
		exitErr("open archive", err)
	}
	defer archive.Close()

	entries, err := archive.Recent(cmd.Context(), args[0], limit)
	if err != nil {
		exitErr("query archive", err)
	}
	for _, e := range entries {
		fmt.Printf("%s  sealed %s\n  %s\n",
			e.SessionID, e.SealedAt.Format("2006-01-02 15:04"), e.Summary)
	}
}
