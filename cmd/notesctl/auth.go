package main

import (
	"fmt"
	"log/slog"
	"os"

	"notely/internal/client"
	"notely/internal/database/dto"

	"github.com/spf13/cobra"
)

var (
	authUsername string
	authEmail    string
	authPassword string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordOrEnv()
		if err != nil {
			return err
		}
		res, err := client.New(apiURL, "").Register(authUsername, authEmail, password)
		if err != nil {
			return err
		}
		return saveSession(cmd, res)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and remember the token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordOrEnv()
		if err != nil {
			return err
		}
		res, err := client.New(apiURL, "").Login(authEmail, password)
		if err != nil {
			return err
		}
		return saveSession(cmd, res)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := tokenFile()
		if err != nil {
			return err
		}
		if err := f.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

func saveSession(cmd *cobra.Command, res dto.AuthResponse) error {
	f, err := tokenFile()
	if err != nil {
		return err
	}
	if err := f.Save(res.Token); err != nil {
		return err
	}
	slog.Debug("token saved", "path", f.Path)
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", res.Msg, res.User.Username)
	return nil
}

// passwordOrEnv keeps the password out of shell history when
// NOTESCTL_PASSWORD is set.
func passwordOrEnv() (string, error) {
	if authPassword != "" {
		return authPassword, nil
	}
	if p := os.Getenv("NOTESCTL_PASSWORD"); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("a password is required (--password or NOTESCTL_PASSWORD)")
}

func init() {
	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd)

	registerCmd.Flags().StringVar(&authUsername, "username", "", "Username")
	registerCmd.Flags().StringVar(&authEmail, "email", "", "Email address")
	registerCmd.Flags().StringVar(&authPassword, "password", "", "Password")
	_ = registerCmd.MarkFlagRequired("username")
	_ = registerCmd.MarkFlagRequired("email")

	loginCmd.Flags().StringVar(&authEmail, "email", "", "Email address")
	loginCmd.Flags().StringVar(&authPassword, "password", "", "Password")
	_ = loginCmd.MarkFlagRequired("email")
}
