package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/voicerelay/internal/google"
)

func newGoogleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "google",
		Short: "Manage Google Workspace access",
	}

	cmd.AddCommand(newGoogleAuthCmd())
	return cmd
}

func newGoogleAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail, Drive, Calendar, Sheets and Contacts access",
		Long: "Runs the OAuth authorization code flow using the client credentials file " +
			"and caches the resulting token for the server.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			credPath := paths.GoogleCredentials(cfg.Google)
			oauthCfg, err := google.LoadOAuthConfig(credPath)
			if err != nil {
				return fmt.Errorf("%w (download OAuth client credentials to %s)", err, credPath)
			}

			tok, err := google.Authorize(cmd.Context(), oauthCfg, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			tokenPath := paths.GoogleToken(cfg.Google)
			if err := google.SaveToken(tokenPath, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nToken saved to %s\n", tokenPath)
			if !cfg.Google.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Set google.enabled: true in the config to use it.")
			}
			return nil
		},
	}
}
