package commands

import (
	"encoding/hex"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/netice/ice/stun"
)

// getKeyCmd generates a TURN long-term-credential integrity key for a
// gather.TURNServerConfig entry, grounded on internal/cli/key.go.
func getKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "generate long-term integrity key for a TURN server entry",
		Run: func(cmd *cobra.Command, args []string) {
			f := cmd.Flags()
			u, err := f.GetString("user")
			if err != nil {
				log.Fatal("failed to get user")
			}
			r, err := f.GetString("realm")
			if err != nil {
				log.Fatal("failed to get realm")
			}
			p, err := f.GetString("password")
			if err != nil {
				log.Fatal("failed to get password")
			}
			i := stun.NewLongTermIntegrity(u, r, p)
			fmt.Printf("0x%s\n", hex.EncodeToString(i))
		},
	}
	cmd.Flags().StringP("user", "u", "", "username")
	cmd.Flags().StringP("password", "p", "", "password")
	cmd.Flags().StringP("realm", "r", "", "realm")
	return cmd
}
