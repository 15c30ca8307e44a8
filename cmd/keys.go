package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/agrotrace/agrocheck/internal/auth"
)

var (
	keyPermissions []string
	keyRateLimit   int
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Generate an API key and store its hash",
	Long:  "Prints the raw key exactly once; only the bcrypt hash is stored.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		prefix, err := randomHex(4)
		if err != nil {
			return err
		}
		secret, err := randomHex(16)
		if err != nil {
			return err
		}
		rawKey := prefix + "." + secret

		hash, err := auth.HashKey(rawKey)
		if err != nil {
			return err
		}

		_, err = e.Pool.Exec(ctx, `
			INSERT INTO api_keys (prefix, key_hash, permissions, rate_limit)
			VALUES ($1, $2, $3, $4)`,
			prefix, hash, keyPermissions, keyRateLimit,
		)
		if err != nil {
			return eris.Wrap(err, "insert api key")
		}

		fmt.Printf("API key (store it now, it is not recoverable):\n%s\n", rawKey)
		return nil
	},
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", eris.Wrap(err, "random bytes")
	}
	return hex.EncodeToString(buf), nil
}

func init() {
	keysCreateCmd.Flags().StringSliceVar(&keyPermissions, "permissions", []string{"read"}, "permissions granted to the key")
	keysCreateCmd.Flags().IntVar(&keyRateLimit, "rate-limit", 60, "requests per minute (0 = unlimited)")
	keysCmd.AddCommand(keysCreateCmd)
	rootCmd.AddCommand(keysCmd)
}
