package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/commitwatch/commitwatch-go/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store credentials in the OS keychain",
}

var configureSetKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Store the OpenAI API key in the OS keychain",
	RunE:  runConfigureSetKey,
}

var configureDeleteKeyCmd = &cobra.Command{
	Use:   "delete-key",
	Short: "Remove the OpenAI API key from the OS keychain",
	RunE:  runConfigureDeleteKey,
}

func init() {
	configureCmd.AddCommand(configureSetKeyCmd)
	configureCmd.AddCommand(configureDeleteKeyCmd)
}

func runConfigureSetKey(cmd *cobra.Command, args []string) error {
	fmt.Print("OpenAI API key: ")
	reader := bufio.NewReader(os.Stdin)
	key, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("empty key")
	}

	if err := config.NewKeyringManager().SaveAPIKey(key); err != nil {
		return fmt.Errorf("store key: %w", err)
	}

	fmt.Println("API key stored in keychain")
	return nil
}

func runConfigureDeleteKey(cmd *cobra.Command, args []string) error {
	if err := config.NewKeyringManager().DeleteAPIKey(); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	fmt.Println("API key removed from keychain")
	return nil
}
