package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bcraddock/reverie/internal/reverie/assemble"
	"github.com/bcraddock/reverie/internal/reverie/llm"
	"github.com/bcraddock/reverie/internal/reverie/session"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Starts a REPL against the configured completion endpoint.

Commands inside the session:
  /retry        regenerate the last reply
  /edit <text>  replace your last message and regenerate
  /quit         save, seal to the archive, and exit`,
		Run: runChat,
	}
	cmd.Flags().String("session", "", "Resume an existing session by ID")
	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	folder, charCfg, err := openCharacter()
	if err != nil {
		exitErr("open character", err)
	}

	var sess *session.Session
	if id, _ := cmd.Flags().GetString("session"); id != "" {
		if sess, err = session.Load(settings.SessionDir, id); err != nil {
			exitErr("resume session", err)
		}
	} else {
		sess = session.New(charCfg.CharacterName)
	}

	client := llm.NewClient(llm.ClientConfig{
		URL:    settings.LLMURL,
		APIKey: settings.APIKey,
		Model:  settings.Model,
	})
	counter := newCounter()
	runner := &session.Runner{
		Session:   sess,
		Retriever: newRetriever(folder),
		Counter:   counter,
		Client:    client,
		Parts: assemble.SystemParts{
			Prefix:        charCfg.Prefix,
			CharacterName: charCfg.CharacterName,
			CharacterInfo: charCfg.CharacterDescription,
			UserName:      charCfg.UserName,
			UserInfo:      charCfg.UserDescription,
			Scenario:      charCfg.Scenario,
		},
		Settings: settings,
		Compressor: &llm.Compressor{
			Client:  client,
			Counter: counter,
			Ratio:   settings.CompressionRatio,
			Floor:   settings.CompressionFloor,
		},
	}

	fmt.Printf("Chatting with %s (session %s). /quit to exit.\n", charCfg.CharacterName, sess.ID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Printf("%s> ", charCfg.UserName)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			sealAndSave(cmd, runner, sess)
			return
		case line == "/retry":
			user, ok := sess.RetryLast()
			if !ok {
				fmt.Println("nothing to retry")
				continue
			}
			line = user
		case line == "/edit" || strings.HasPrefix(line, "/edit "):
			text := editArgument(line)
			if text == "" {
				fmt.Println("usage: /edit <text>")
				continue
			}
			if !sess.DropLastExchange() {
				fmt.Println("nothing to edit")
				continue
			}
			line = text
		}

		results, err := runner.Send(cmd.Context(), line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		res := <-results

		fmt.Printf("\n%s: %s\n\n", charCfg.CharacterName, res.Reply)
		if res.DebugReport != "" {
			fmt.Println(res.DebugReport)
		}
	}
	sealAndSave(cmd, runner, sess)
}

// editArgument returns the replacement text of an /edit command line. Empty
// means the command carried no text to resubmit.
func editArgument(line string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, "/edit"))
}

// sealAndSave persists the session JSON and stores a sealed copy in the
// archive: transcript, a compressed summary, and an embedding of the
// summary for later similarity lookup.
func sealAndSave(cmd *cobra.Command, runner *session.Runner, sess *session.Session) {
	if err := sess.Save(settings.SessionDir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: save session: %v\n", err)
	}
	if len(sess.History) == 0 {
		return
	}

	archive, err := session.OpenArchive(archivePath(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: open archive: %v\n", err)
		return
	}
	defer archive.Close()

	var transcript strings.Builder
	for _, m := range sess.History {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}
	summary := runner.Compressor.Compress(cmd.Context(), transcript.String())

	embedding, err := newEmbedder().Embed(cmd.Context(), summary)
	if err != nil {
		embedding = nil
	}

	err = archive.Store(cmd.Context(), session.ArchiveEntry{
		SessionID:     sess.ID,
		CharacterName: sess.CharacterName,
		Summary:       summary,
		Embedding:     embedding,
		Messages:      sess.History,
		SealedAt:      time.Now().UTC(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: seal session: %v\n", err)
	}
}
