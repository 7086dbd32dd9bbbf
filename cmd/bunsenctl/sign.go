package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/thomaseleff/bunsen/internal/service"
)

const secretEnv = "BUNSEN_GITHUB_WEBHOOK_SECRET"

// newSignCmd prints the X-Hub-Signature-256 value for a payload, which is
// handy for replaying deliveries against a local server with curl.
func newSignCmd() *cobra.Command {
	var secret, file string

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Compute the webhook signature header for a payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := resolveSecret(secret)
			if err != nil {
				return err
			}
			body, err := readPayload(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), service.SignBody(body, key))
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "webhook secret (defaults to $"+secretEnv+")")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "payload file, - for stdin")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var secret, file, signature string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a webhook signature header against a payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := resolveSecret(secret)
			if err != nil {
				return err
			}
			body, err := readPayload(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			if err := service.VerifySignature(body, signature, key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signature valid")
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "webhook secret (defaults to $"+secretEnv+")")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "payload file, - for stdin")
	cmd.Flags().StringVar(&signature, "signature", "", "X-Hub-Signature-256 header value")
	return cmd
}

func resolveSecret(flag string) ([]byte, error) {
	if flag != "" {
		return []byte(flag), nil
	}
	if env := os.Getenv(secretEnv); env != "" {
		return []byte(env), nil
	}
	return nil, errors.New("no webhook secret: pass --secret or set " + secretEnv)
}

func readPayload(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		body, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading payload from stdin: %w", err)
		}
		return body, nil
	}
	body, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return body, nil
}
