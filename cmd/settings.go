package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/fabot/internal/config"
	"github.com/nextlevelbuilder/fabot/internal/store"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and edit channel settings without the bot",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <channel-id>",
		Short: "Show the blurb and moderators of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: withSettings(func(ctx context.Context, s store.ChannelSettingsStore, w io.Writer, args []string) error {
			return printSettings(ctx, s, w, args[0])
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set-blurb <channel-id> <text...>",
		Short: "Set the required foreign agent text",
		Args:  cobra.MinimumNArgs(2),
		RunE: withSettings(func(ctx context.Context, s store.ChannelSettingsStore, w io.Writer, args []string) error {
			blurb := strings.TrimSpace(strings.Join(args[1:], " "))
			if blurb == "" {
				return errors.New("blurb must not be empty")
			}
			if err := s.UpdateBlurb(ctx, args[0], blurb); err != nil {
				return err
			}
			fmt.Fprintf(w, "blurb updated for %s\n", args[0])
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "notify-add <channel-id> <user-id>",
		Short: "Add a moderator to the rejection notification list",
		Args:  cobra.ExactArgs(2),
		RunE: withSettings(func(ctx context.Context, s store.ChannelSettingsStore, w io.Writer, args []string) error {
			userID, err := parseUserID(args[1])
			if err != nil {
				return err
			}
			if err := s.AddNotificationUser(ctx, args[0], userID); err != nil {
				return err
			}
			fmt.Fprintf(w, "user %d will be notified for %s\n", userID, args[0])
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "notify-remove <channel-id> <user-id>",
		Short: "Remove a moderator from the notification list",
		Args:  cobra.ExactArgs(2),
		RunE: withSettings(func(ctx context.Context, s store.ChannelSettingsStore, w io.Writer, args []string) error {
			userID, err := parseUserID(args[1])
			if err != nil {
				return err
			}
			if err := s.RemoveNotificationUser(ctx, args[0], userID); err != nil {
				return err
			}
			fmt.Fprintf(w, "user %d removed for %s\n", userID, args[0])
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "notify-list <channel-id>",
		Short: "List moderators notified about rejections",
		Args:  cobra.ExactArgs(1),
		RunE: withSettings(func(ctx context.Context, s store.ChannelSettingsStore, w io.Writer, args []string) error {
			ids, err := s.ListNotificationUsers(ctx, args[0])
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(w, "(none)")
			}
			for _, id := range ids {
				fmt.Fprintln(w, id)
			}
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <channel-id>",
		Short: "Delete all settings of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: withSettings(func(ctx context.Context, s store.ChannelSettingsStore, w io.Writer, args []string) error {
			if err := s.DeleteSettings(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(w, "settings deleted for %s\n", args[0])
			return nil
		}),
	})

	return cmd
}

type settingsAction func(ctx context.Context, s store.ChannelSettingsStore, w io.Writer, args []string) error

// withSettings opens the configured store around a settings action.
func withSettings(action settingsAction) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(resolveConfigPath())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		stores, err := openStores(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer stores.Close()
		return action(cmd.Context(), stores.Settings, cmd.OutOrStdout(), args)
	}
}

func printSettings(ctx context.Context, s store.ChannelSettingsStore, w io.Writer, channelID string) error {
	settings, err := s.GetSettings(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(w, "%s: no settings\n", channelID)
		return nil
	}
	if err != nil {
		return err
	}

	blurb := settings.ForeignAgentBlurb
	if blurb == "" {
		blurb = "(not set)"
	}
	fmt.Fprintf(w, "channel:    %s\n", channelID)
	fmt.Fprintf(w, "blurb:      %s\n", blurb)
	if len(settings.NotificationUserIDs) == 0 {
		fmt.Fprintln(w, "moderators: (none)")
	} else {
		ids := make([]string, len(settings.NotificationUserIDs))
		for i, id := range settings.NotificationUserIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		fmt.Fprintf(w, "moderators: %s\n", strings.Join(ids, ", "))
	}
	fmt.Fprintf(w, "updated:    %s\n", settings.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}
