package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/frahmantamala/securemind/internal/notification"
	"github.com/spf13/cobra"
)

var (
	broadcastKind    string
	broadcastRefID   string
	broadcastTitle   string
	broadcastMessage string
	broadcastTarget  string
	broadcastRoles   []string
	broadcastUsers   []string
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Fan a notification out to a target audience",
	Long:  `Write one notification per recipient of --target (all, roles or users) from the command line.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signalContext()
		defer stop()
		app := mustApp(ctx)
		defer app.Close()

		n, err := runBroadcast(ctx, app.Broadcaster)
		if err != nil {
			app.Logger.Error("broadcast failed", "written", n, "error", err)
			app.Close()
			os.Exit(1)
		}
		fmt.Printf("Wrote %d notifications\n", n)
	},
}

func runBroadcast(ctx context.Context, b *notification.Broadcaster) (int, error) {
	if broadcastTitle == "" {
		return 0, fmt.Errorf("--title is required")
	}
	return b.Broadcast(ctx, notification.Broadcast{
		Kind:    broadcastKind,
		RefID:   broadcastRefID,
		Title:   broadcastTitle,
		Message: broadcastMessage,
		Target: notification.Target{
			Type:    broadcastTarget,
			Roles:   broadcastRoles,
			UserIDs: broadcastUsers,
		},
	})
}

func init() {
	broadcastCmd.Flags().StringVar(&broadcastKind, "kind", notification.KindFact, "notification kind (fact or policy)")
	broadcastCmd.Flags().StringVar(&broadcastRefID, "ref", "", "id of the fact or policy")
	broadcastCmd.Flags().StringVar(&broadcastTitle, "title", "", "notification title")
	broadcastCmd.Flags().StringVar(&broadcastMessage, "message", "", "notification message")
	broadcastCmd.Flags().StringVar(&broadcastTarget, "target", notification.TargetAll, "all, roles or users")
	broadcastCmd.Flags().StringSliceVar(&broadcastRoles, "roles", nil, "roles for --target roles")
	broadcastCmd.Flags().StringSliceVar(&broadcastUsers, "users", nil, "user ids for --target users")
}
