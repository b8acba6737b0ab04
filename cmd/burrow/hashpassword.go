package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"burrow/internal/auth"
)

var hashCost int

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [PASSWORD]",
	Short: "Print a bcrypt hash for the users file",
	Long: `Hash a password for the [users] table of the auth users file. Without an
argument the password is read from the first line of stdin.

Examples:
  burrow hash-password s3cret
  echo s3cret | burrow hash-password --cost 10`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashPassword,
}

func init() {
	hashPasswordCmd.Flags().IntVar(&hashCost, "cost", auth.DefaultCost, "bcrypt cost")
	rootCmd.AddCommand(hashPasswordCmd)
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return fmt.Errorf("empty password")
	}

	hash, err := auth.HashPassword(password, hashCost)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
