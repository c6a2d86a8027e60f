package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/and161185/notekeeper/internal/api"
)

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "notes %s (%s)\n", version, buildDate)
		},
	}
}

func credentialFlags(cmd *cobra.Command, user, pass *string) {
	cmd.Flags().StringVarP(user, "username", "u", "", "username")
	cmd.Flags().StringVarP(pass, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
}

func (a *app) registerCmd() *cobra.Command {
	var user, pass string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cli, done, err := a.client(cmd, false)
			if err != nil {
				return err
			}
			defer done()

			resp, err := cli.Register(ctx, &api.RegisterRequest{Username: user, Password: pass})
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			success(cmd.OutOrStdout(), "registered %s (%s)", user, resp.UserID)
			return nil
		},
	}
	credentialFlags(cmd, &user, &pass)
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var user, pass string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cli, done, err := a.client(cmd, false)
			if err != nil {
				return err
			}
			defer done()

			resp, err := cli.Login(ctx, &api.LoginRequest{Username: user, Password: pass})
			if err != nil {
				return err
			}
			if err := saveToken(tokenFile{AccessToken: resp.AccessToken, ExpiresAt: resp.ExpiresAt, Username: user}); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			success(cmd.OutOrStdout(), "logged in as %s until %s", user, tsString(resp.ExpiresAt))
			return nil
		},
	}
	credentialFlags(cmd, &user, &pass)
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := removeToken(); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

// noteInput collects --title, --content and --file for add and edit.
type noteInput struct {
	title   string
	content string
	file    string
}

func (in *noteInput) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&in.title, "title", "t", "", "note title (default \"Untitled note\")")
	cmd.Flags().StringVarP(&in.content, "content", "c", "", "note content")
	cmd.Flags().StringVarP(&in.file, "file", "f", "", "read content from file ('-' = stdin)")
	cmd.MarkFlagsMutuallyExclusive("content", "file")
}

// titlePtr is nil unless --title was given, so the server applies its default.
func (in *noteInput) titlePtr(cmd *cobra.Command) *string {
	if !cmd.Flags().Changed("title") {
		return nil
	}
	t := in.title
	return &t
}

// body returns the content and whether the caller supplied any.
func (in *noteInput) body(cmd *cobra.Command) (string, bool, error) {
	switch {
	case cmd.Flags().Changed("file"):
		s, err := readContent(cmd.InOrStdin(), in.file)
		return s, true, err
	case cmd.Flags().Changed("content"):
		return in.content, true, nil
	default:
		return "", false, nil
	}
}

func (a *app) printOne(cmd *cobra.Command, n api.Note) error {
	if a.json {
		return printJSON(cmd.OutOrStdout(), n)
	}
	printNote(cmd.OutOrStdout(), n)
	return nil
}

func (a *app) addCmd() *cobra.Command {
	var in noteInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			content, ok, err := in.body(cmd)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("need --content or --file")
			}
			ctx, cli, done, err := a.client(cmd, true)
			if err != nil {
				return err
			}
			defer done()

			resp, err := cli.CreateNote(ctx, &api.CreateNoteRequest{Title: in.titlePtr(cmd), Content: content})
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(cmd.OutOrStdout(), resp.Note)
			}
			success(cmd.OutOrStdout(), "created %s", resp.Note.ID)
			return nil
		},
	}
	in.bind(cmd)
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List notes, most recently updated first",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cli, done, err := a.client(cmd, true)
			if err != nil {
				return err
			}
			defer done()

			resp, err := cli.ListNotes(ctx, &api.ListNotesRequest{})
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(cmd.OutOrStdout(), resp.Notes)
			}
			printNoteList(cmd.OutOrStdout(), resp.Notes)
			return nil
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "show <id>",
		Short:   "Show one note",
		Aliases: []string{"get"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cli, done, err := a.client(cmd, true)
			if err != nil {
				return err
			}
			defer done()

			resp, err := cli.GetNote(ctx, &api.GetNoteRequest{ID: args[0]})
			if err != nil {
				return err
			}
			return a.printOne(cmd, resp.Note)
		},
	}
}

func (a *app) editCmd() *cobra.Command {
	var in noteInput
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the title and/or content of a note",
		Long: `Replace a note's title and content. Fields that are not given keep
their current value; a note whose content cannot be read needs --content or --file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, hasContent, err := in.body(cmd)
			if err != nil {
				return err
			}
			title := in.titlePtr(cmd)
			if title == nil && !hasContent {
				return errors.New("nothing to change: pass --title, --content or --file")
			}

			ctx, cli, done, err := a.client(cmd, true)
			if err != nil {
				return err
			}
			defer done()

			if title == nil || !hasContent {
				cur, err := cli.GetNote(ctx, &api.GetNoteRequest{ID: args[0]})
				if err != nil {
					return err
				}
				if title == nil {
					t := cur.Note.Title
					title = &t
				}
				if !hasContent {
					if cur.Note.ContentUnavailable {
						return errors.New("current content is unreadable; pass --content or --file")
					}
					content = cur.Note.Content
				}
			}

			resp, err := cli.UpdateNote(ctx, &api.UpdateNoteRequest{ID: args[0], Title: title, Content: content})
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(cmd.OutOrStdout(), resp.Note)
			}
			success(cmd.OutOrStdout(), "updated %s", resp.Note.ID)
			return nil
		},
	}
	in.bind(cmd)
	return cmd
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Short:   "Delete a note",
		Aliases: []string{"delete"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cli, done, err := a.client(cmd, true)
			if err != nil {
				return err
			}
			defer done()

			if _, err := cli.DeleteNote(ctx, &api.DeleteNoteRequest{ID: args[0]}); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "deleted %s", args[0])
			return nil
		},
	}
}
