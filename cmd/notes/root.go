package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/and161185/notekeeper/internal/api"
)

// app carries global flags and the connection factory shared by subcommands.
type app struct {
	addr      string
	caPath    string
	insecure  bool
	plaintext bool
	json      bool
	timeout   time.Duration

	// connect opens a client connection; bearer is empty for public calls.
	connect func(ctx context.Context, bearer string) (*grpc.ClientConn, error)
	now     func() time.Time
}

func newRootCmd() *cobra.Command {
	a := &app{now: time.Now}
	a.connect = a.dial
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "notes",
		Short: "notes - encrypted personal notes",
		Long: `notes talks to a notekeeper server over gRPC.

Examples:
  notes register -u alice -p secret
  notes login -u alice -p secret
  notes add --title groceries --content "milk, eggs"
  notes list
  notes show <id>`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.addr, "addr", "localhost:8443", "server address")
	pf.StringVar(&a.caPath, "cacert", "", "CA certificate (PEM)")
	pf.BoolVar(&a.insecure, "insecure", false, "skip certificate verification (dev)")
	pf.BoolVar(&a.plaintext, "plaintext", false, "connect without TLS (server in dev mode)")
	pf.BoolVar(&a.json, "json", false, "output in JSON format")
	pf.DurationVar(&a.timeout, "timeout", 30*time.Second, "per-command deadline")

	root.AddCommand(
		a.versionCmd(),
		a.registerCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.addCmd(),
		a.listCmd(),
		a.showCmd(),
		a.editCmd(),
		a.rmCmd(),
	)
	return root
}

// client opens a connection and returns a typed client with a deadline-bound context.
// authed calls load the saved token first.
func (a *app) client(cmd *cobra.Command, authed bool) (context.Context, api.NotesClient, func(), error) {
	bearer := ""
	if authed {
		tok, err := loadToken(a.now())
		if err != nil {
			return nil, nil, nil, err
		}
		bearer = tok
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	cc, err := a.connect(ctx, bearer)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, api.NewNotesClient(cc), func() {
		_ = cc.Close()
		cancel()
	}, nil
}
