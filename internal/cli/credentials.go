package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/opsbridge/internal/control"
	"github.com/vietddude/opsbridge/internal/core/domain"
	"github.com/vietddude/opsbridge/internal/infra/storage"
)

var newCred domain.Credential

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage credentials in the shared store (Redis or Postgres)",
}

var credentialsPutCmd = &cobra.Command{
	Use:   "put ALIAS",
	Short: "Create or replace the credential for ALIAS",
	Long: `Create or replace the credential for ALIAS.
Secrets may be passed through the environment: OPSBRIDGE_PASSWORD,
OPSBRIDGE_CLIENT_SECRET and OPSBRIDGE_TOKEN are used when the matching flag
is empty.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store storage.CredentialRepository) error {
			cred := newCred
			cred.Alias = args[0]
			if cred.Password == "" {
				cred.Password = os.Getenv("OPSBRIDGE_PASSWORD")
			}
			if cred.ClientSecret == "" {
				cred.ClientSecret = os.Getenv("OPSBRIDGE_CLIENT_SECRET")
			}
			if cred.Token == "" {
				cred.Token = os.Getenv("OPSBRIDGE_TOKEN")
			}
			if cred.URL == "" {
				return fmt.Errorf("--url is required")
			}

			if err := store.Put(ctx, &cred); err != nil {
				return err
			}
			slog.Info("Credential stored", "alias", cred.Alias, "auth", cred.Method())
			return nil
		})
	},
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store storage.CredentialRepository) error {
			creds, err := store.List(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
			_, _ = fmt.Fprintln(w, "ALIAS\tURL\tAUTH\tUSER\tSECRET")
			for _, c := range creds {
				secret := "-"
				if c.Password != "" || c.ClientSecret != "" || c.Token != "" {
					secret = "***"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Alias, c.URL, c.Method(), c.Username, secret)
			}
			return w.Flush()
		})
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete ALIAS",
	Short: "Remove the credential for ALIAS",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store storage.CredentialRepository) error {
			if err := store.Delete(ctx, args[0]); err != nil {
				return err
			}
			slog.Info("Credential deleted", "alias", args[0])
			return nil
		})
	},
}

func init() {
	f := credentialsPutCmd.Flags()
	f.StringVar(&newCred.URL, "url", "", "instance base URL")
	f.StringVar((*string)(&newCred.Auth), "auth", "", "auth method: basic, oauth or token (inferred when empty)")
	f.StringVar(&newCred.Username, "username", "", "user name (basic and oauth)")
	f.StringVar(&newCred.Password, "password", "", "password (basic and oauth)")
	f.StringVar(&newCred.ClientID, "client-id", "", "OAuth client ID")
	f.StringVar(&newCred.ClientSecret, "client-secret", "", "OAuth client secret")
	f.StringVar(&newCred.Token, "token", "", "static bearer token")
	f.DurationVar(&newCred.Timeout, "timeout", 30*time.Second, "request timeout")

	credentialsCmd.AddCommand(credentialsPutCmd, credentialsListCmd, credentialsDeleteCmd)
	rootCmd.AddCommand(credentialsCmd)
}

func withStore(fn func(ctx context.Context, store storage.CredentialRepository) error) error {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		return err
	}

	ctx := context.Background()
	app, err := control.NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize opsbridge", "error", err)
		return err
	}
	defer func() { _ = app.Close() }()

	store, err := app.CredentialStore()
	if err != nil {
		return err
	}
	return fn(ctx, store)
}
