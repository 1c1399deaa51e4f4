package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kamir/gowxbot/internal/config"
	"github.com/kamir/gowxbot/internal/contacts"
	"github.com/kamir/gowxbot/internal/gateway"
	"github.com/spf13/cobra"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Fetch and print friend and chatroom listings",
	Run:   runContacts,
}

func init() {
	rootCmd.AddCommand(contactsCmd)
}

func runContacts(cmd *cobra.Command, args []string) {
	printHeader("👥 GoWxBot Contacts")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}

	tokens := gateway.NewStaticTokenSource(cfg.Gateway.Token)
	client := gateway.NewClient(cfg.Gateway.BaseURL, nil, tokens)
	cache := contacts.NewCache(client, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := cache.Refresh(ctx); err != nil {
		fmt.Printf("Refresh failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Friends (%d):\n", len(cache.Friends()))
	for _, c := range cache.Friends() {
		name := c.Memo
		if name == "" {
			name = c.NickName
		}
		fmt.Printf("  %-24s %s\n", c.FriendID, name)
	}

	fmt.Printf("\nChatrooms (%d):\n", len(cache.Chatrooms()))
	for _, c := range cache.Chatrooms() {
		fmt.Printf("  %-24s %s\n", c.FriendID, cache.RoomName(c.FriendID))
	}
}
