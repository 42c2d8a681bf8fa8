package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func otpCmd() *cobra.Command {
	var at int64
	cmd := &cobra.Command{
		Use:   "otp <path> <entry-uuid>",
		Short: "Print the current one-time code of an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			i, err := openUnlocked(ctx, app, args[0])
			if err != nil {
				return err
			}
			if at <= 0 {
				at = time.Now().Unix()
			}

			code, err := app.GetOTP(ctx, i, args[1], uint64(at))
			if err != nil {
				return err
			}
			fmt.Printf("%s (valid for %ds of %ds)\n", code.Code, code.ValidFor, code.Period)
			return nil
		},
	}
	cmd.Flags().Int64Var(&at, "time", 0, "Unix time to compute the code for (default now)")
	return cmd
}
