package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the rooms the user token can see",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		user, err := webexClient(cfg, cfg.Webex.UserToken)
		if err != nil {
			return err
		}

		rooms, err := user.ListRooms(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, r := range rooms {
			fmt.Fprintf(out, "%s\t%s\n", r.ID, r.Title)
		}
		return nil
	},
}

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Manage the bot's room",
}

var roomCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a room (defaults to the configured room title)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		title := cfg.Webex.Room
		if len(args) == 1 {
			title = args[0]
		}
		if strings.TrimSpace(title) == "" {
			return fmt.Errorf("room title is required")
		}

		user, err := webexClient(cfg, cfg.Webex.UserToken)
		if err != nil {
			return err
		}
		room, err := user.CreateRoom(cmd.Context(), title)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created room %q (%s)\n", room.Title, room.ID)
		return nil
	},
}

var cleanupAs string

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete the messages one identity posted in the configured room",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var token string
		switch cleanupAs {
		case "bot":
			token = cfg.Webex.BotToken
		case "user":
			token = cfg.Webex.UserToken
		default:
			return fmt.Errorf("--as must be \"bot\" or \"user\", got %q", cleanupAs)
		}

		user, err := webexClient(cfg, cfg.Webex.UserToken)
		if err != nil {
			return err
		}
		roomID, err := resolveRoom(cmd.Context(), user, cfg.Webex.Room)
		if err != nil {
			return err
		}
		client, err := webexClient(cfg, token)
		if err != nil {
			return err
		}

		deleted, err := client.DeleteAll(cmd.Context(), roomID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d messages\n", deleted)
		return nil
	},
}

func init() {
	roomCmd.AddCommand(roomCreateCmd)
	cleanupCmd.Flags().StringVar(&cleanupAs, "as", "bot", `identity whose messages are deleted ("bot" or "user")`)
}
