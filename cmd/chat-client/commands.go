package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Checker-Finance/chat-client/pkg/model"
)

// ─── Auth ────────────────────────────────────────────────────────────────────

func newLoginCmd(get func() *app) *cobra.Command {
	var (
		username string
		password string
		profile  string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if profile != "" {
				src, err := a.secretSource(cmd.Context())
				if err != nil {
					return err
				}
				if _, err := a.auth.LoginFromSecret(cmd.Context(), src, profile); err != nil {
					return loginError{err}
				}
				cmd.Println("logged in")
				return nil
			}

			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if username == "" {
				if username, err = prompt(cmd, in, "username: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt(cmd, in, "password: "); err != nil {
					return err
				}
			}
			if _, err := a.auth.Login(cmd.Context(), username, password); err != nil {
				return loginError{err}
			}
			cmd.Printf("logged in as %s\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")
	cmd.Flags().StringVar(&profile, "secret", "", "read credentials from the AWS secret of this profile")
	return cmd
}

func newLogoutCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget stored credentials and token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := get().auth.Logout(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("logged out")
			return nil
		},
	}
}

func newRegisterCmd(get func() *app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if username == "" {
				if username, err = prompt(cmd, in, "username: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt(cmd, in, "password: "); err != nil {
					return err
				}
			}
			if err := get().auth.Register(cmd.Context(), username, password); err != nil {
				return registerError{err}
			}
			cmd.Printf("registered %s, you can now log in\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")
	return cmd
}

func newWhoamiCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := get().chat.Me(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Println(u.Name)
			return nil
		},
	}
}

func newUsersCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List public users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := get().chat.ListPublicUsers(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range users {
				cmd.Println(u.Name)
			}
			return nil
		},
	}
}

// ─── Conversations ───────────────────────────────────────────────────────────

func newConversationsCmd(get func() *app) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"convos"},
		Short:   "List conversations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			load := a.chat.Sidebar
			if refresh {
				load = a.chat.RefreshSidebar
			}
			items, err := load(cmd.Context())
			if err != nil {
				return err
			}
			for _, it := range items {
				cmd.Printf("%d\t%s\n", it.ID, it.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the session cache")

	var assistantID int
	create := &cobra.Command{
		Use:   "create <title>",
		Short: "Start a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := get().chat.CreateConversation(cmd.Context(), model.CreateConversationRequest{
				AssistantID: assistantID,
				Title:       args[0],
			})
			if err != nil {
				return err
			}
			cmd.Printf("%d\t%s\n", c.ID, c.Title)
			return nil
		},
	}
	create.Flags().IntVar(&assistantID, "assistant", 0, "assistant ID")
	_ = create.MarkFlagRequired("assistant")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, err := get().chat.GetConversation(cmd.Context(), id)
			if err != nil {
				return err
			}
			cmd.Printf("# %s\n", d.Title)
			for _, m := range d.Messages {
				cmd.Printf("[%s] %s\n", m.Role, m.Content)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return get().chat.DeleteConversation(cmd.Context(), id)
		},
	}

	cmd.AddCommand(create, show, del)
	return cmd
}

func newChatCmd(get func() *app) *cobra.Command {
	var modelName string
	cmd := &cobra.Command{
		Use:   "chat <conversation-id> <message>",
		Short: "Send a message and print the reply",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			reply, err := get().chat.Chat(cmd.Context(), model.ChatRequest{
				ConversationID: id,
				Model:          modelName,
				Message:        strings.Join(args[1:], " "),
			})
			if err != nil {
				return err
			}
			cmd.Println(reply)
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelName, "model", "m", "llama3", "model name")
	return cmd
}

func newGenerateCmd(get func() *app) *cobra.Command {
	var modelName string
	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "One-shot generation outside any conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := get().chat.Generate(cmd.Context(), model.GenerateRequest{
				Model:   modelName,
				Message: strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			cmd.Println(out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelName, "model", "m", "llama3", "model name")
	return cmd
}

// ─── Assistants ──────────────────────────────────────────────────────────────

func newAssistantsCmd(get func() *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "assistants",
		Short: "List assistants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := get().chat.ListAssistants(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), list)
			}
			for _, as := range list {
				cmd.Printf("%d\t%s\t%s\n", as.ID, as.Name, as.Model)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	var name, modelName string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an assistant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			as, err := get().chat.CreateAssistant(cmd.Context(), model.CreateAssistantRequest{Name: name, Model: modelName})
			if err != nil {
				return err
			}
			cmd.Printf("%d\t%s\t%s\n", as.ID, as.Name, as.Model)
			return nil
		},
	}
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename or re-model an assistant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			as, err := get().chat.UpdateAssistant(cmd.Context(), id, model.UpdateAssistantRequest{Name: name, Model: modelName})
			if err != nil {
				return err
			}
			cmd.Printf("%d\t%s\t%s\n", as.ID, as.Name, as.Model)
			return nil
		},
	}
	for _, c := range []*cobra.Command{create, update} {
		c.Flags().StringVar(&name, "name", "", "assistant name")
		c.Flags().StringVarP(&modelName, "model", "m", "llama3", "model name")
		_ = c.MarkFlagRequired("name")
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an assistant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return get().chat.DeleteAssistant(cmd.Context(), id)
		},
	}

	cmd.AddCommand(create, update, del)
	return cmd
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func prompt(cmd *cobra.Command, in *bufio.Reader, label string) (string, error) {
	cmd.Print(label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return strings.TrimSpace(line), nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
