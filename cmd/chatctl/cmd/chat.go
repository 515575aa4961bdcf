package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/ashureev/atelier/internal/chat"
	"github.com/ashureev/atelier/internal/domain"
	"github.com/ashureev/atelier/internal/locale"
	"github.com/ashureev/atelier/internal/widget"
	"github.com/spf13/cobra"
)

var chatPage string

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the assistant",
	Long: `Opens the chat widget and sends messages to the assistant.

Without an argument the widget starts closed on its menu: pick 1 to chat
or 2 for WhatsApp. If nothing is typed for a while the assistant offers
help once. With an argument a single message is sent and the reply printed.

Commands in interactive mode:
  /new    discard the transcript and start over
  /back   return to the menu, keeping the stored transcript
  /quit   leave`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatPage, "page", "", "Site path the chat is opened from (default: the locale home page)")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.close()

	page := chatPage
	if page == "" {
		page = "/" + string(c.locale) + "/"
	}

	out := &lockedWriter{w: cmd.OutOrStdout()}
	session := widget.New(widget.Options{
		Locale:    c.locale,
		Path:      page,
		Storage:   c.storage,
		Completer: chat.NewClient(serverURL, c.visitor.HTTPClient()),
		OnChange:  nudgePrinter(out, locale.DictionaryFor(string(c.locale))),
	})
	defer session.Close()

	session.Mount(ctx)

	if len(args) > 0 {
		session.SetOpen(true)
		session.StartChat(ctx)
		return sendAndPrint(ctx, out, session, strings.Join(args, " "))
	}
	return interactive(ctx, cmd.InOrStdin(), out, session)
}

// interactive starts with the widget closed on the menu. The first line of
// input opens it.
func interactive(ctx context.Context, in io.Reader, out io.Writer, session *widget.Session) error {
	dict := session.Dictionary()
	fmt.Fprintln(out, dict.T("chat.title"))
	fmt.Fprintln(out, strings.Repeat("=", len([]rune(dict.T("chat.title")))))
	printMenu(out, dict)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !session.Snapshot().Open {
			session.SetOpen(true)
		}
		inMenu := session.Snapshot().View == widget.ViewMenu

		switch line {
		case "/quit", "/exit":
			return nil
		case "/new":
			session.NewChat(ctx)
			if inMenu {
				session.StartChat(ctx)
			}
			printMessages(out, session.Snapshot().Messages, session.Locale())
			continue
		case "/back":
			session.Back()
			printMenu(out, dict)
			continue
		}

		if inMenu {
			switch line {
			case "1":
				session.StartChat(ctx)
				printMessages(out, session.Snapshot().Messages, session.Locale())
			case "2":
				if link := widget.WhatsAppLink(formatOptions().WhatsAppNumber); link != "" {
					fmt.Fprintf(out, "    [%s] %s\n", dict.T("chat.action_whatsapp"), link)
				} else {
					printMenu(out, dict)
				}
			default:
				printMenu(out, dict)
			}
			continue
		}

		if err := sendAndPrint(ctx, out, session, line); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// sendAndPrint sends text and prints the reply added to the transcript.
func sendAndPrint(ctx context.Context, out io.Writer, session *widget.Session, text string) error {
	before := len(session.Snapshot().Messages)
	session.SetInput(text)
	if err := session.Send(ctx); err != nil {
		if errors.Is(err, widget.ErrEmptyInput) {
			return nil
		}
		return fmt.Errorf("send message: %w", err)
	}

	snap := session.Snapshot()
	var added []domain.ChatMessage
	for _, m := range snap.Messages[min(before, len(snap.Messages)):] {
		if m.Role == domain.RoleAssistant {
			added = append(added, m)
		}
	}
	printMessages(out, added, session.Locale())
	return nil
}
