package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"tasksync/api"
)

var tokenOpts struct {
	count  int
	prefix string
	start  int
	ttl    time.Duration
	output string
}

var tokenCmd = &cobra.Command{
	Use:   "gen-token [user-id]",
	Short: "Sign local HS256 tokens with AUTH_TEST_SECRET",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.AuthTestSecret == "" {
			return errors.New("AUTH_TEST_SECRET must be set")
		}
		tokens, err := generateTokens([]byte(cfg.AuthTestSecret), args)
		if err != nil {
			return err
		}
		if tokenOpts.output != "" {
			data, err := sonic.Marshal(tokens)
			if err != nil {
				return err
			}
			if err := os.WriteFile(tokenOpts.output, data, 0o600); err != nil {
				return fmt.Errorf("write tokens: %w", err)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), tokens[0])
		return nil
	},
}

func init() {
	f := tokenCmd.Flags()
	f.IntVar(&tokenOpts.count, "count", 1, "number of tokens to generate")
	f.StringVar(&tokenOpts.prefix, "prefix", "local-user", "user id prefix when count > 1")
	f.IntVar(&tokenOpts.start, "start", 1, "first index when count > 1")
	f.DurationVar(&tokenOpts.ttl, "ttl", time.Hour, "token lifetime")
	f.StringVar(&tokenOpts.output, "output", "", "also write all tokens to this file as a JSON array")
}

func generateTokens(secret []byte, args []string) ([]string, error) {
	if tokenOpts.count < 1 {
		return nil, errors.New("count must be at least 1")
	}
	if tokenOpts.start < 1 {
		return nil, errors.New("start index must be at least 1")
	}
	if len(args) > 0 && tokenOpts.count > 1 {
		return nil, errors.New("explicit user id cannot be combined with count > 1")
	}
	tokens := make([]string, tokenOpts.count)
	for i := range tokens {
		userID := tokenOpts.prefix
		switch {
		case len(args) > 0:
			userID = args[0]
		case tokenOpts.count > 1:
			userID = fmt.Sprintf("%s-%d", tokenOpts.prefix, tokenOpts.start+i)
		}
		tok, err := api.LocalToken(secret, userID, tokenOpts.ttl)
		if err != nil {
			return nil, err
		}
		tokens[i] = tok
	}
	return tokens, nil
}
