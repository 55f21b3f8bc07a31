package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omax404/aiko/pkg/config"
	"github.com/omax404/aiko/pkg/logger"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "aiko",
		Short: "Desktop AI companion with tool-calling dialogue, memory, and a task gateway",
		Long: strings.TrimSpace(`aiko is the conversational core of a desktop companion.

Use CLI commands to chat locally, run the gateway (Discord bridge, task
callbacks, proactive messages), ingest documents into long-term recall,
and manage conversation memory.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newGatewayCommand())
	root.AddCommand(newIngestCommand())
	root.AddCommand(newMemoryCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".aiko", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

func enableDebug(debug bool) {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("Debug mode enabled")
	}
}

func newOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Initialize ~/.aiko configuration",
		Example: "  aiko onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := getConfigPath()
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config already exists at %s", configPath)
			}
			if err := config.SaveConfig(configPath, config.DefaultConfig()); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Printf("%s is ready!\n\n", appName)
			fmt.Println("Next steps:")
			fmt.Println("  1. Point llm.url at your model server in", configPath)
			fmt.Println("  2. Chat locally: aiko chat")
			fmt.Println("  3. (Optional) Add a Discord token and run: aiko gateway")
			return nil
		},
	}
}

func newChatCommand() *cobra.Command {
	var (
		message  string
		identity string
		debug    bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with Aiko locally (interactive or one-shot)",
		Example: strings.Join([]string{
			"  aiko chat",
			"  aiko chat --identity guest-1",
			"  aiko chat --message \"good morning!\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			enableDebug(debug)
			return chatCmd(message, identity)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "One-shot message instead of the REPL")
	cmd.Flags().StringVarP(&identity, "identity", "i", "omax404", "Conversation identity")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newGatewayCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "gateway",
		Short:   "Run the gateway: channel bridges, task callbacks, proactive scheduler",
		Example: "  aiko gateway --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			enableDebug(debug)
			return gatewayCmd()
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newIngestCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "ingest <file>",
		Short:   "Ingest a document into long-term recall",
		Args:    cobra.ExactArgs(1),
		Example: "  aiko ingest ~/notes/journal.md\n  aiko ingest report.pdf",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ingestCmd(args[0])
		},
	}
}

func newMemoryCommand() *cobra.Command {
	memoryRoot := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and manage conversation memory",
	}

	memoryRoot.AddCommand(&cobra.Command{
		Use:     "sessions",
		Short:   "List conversations, newest first",
		Example: "  aiko memory sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return memorySessionsCmd()
		},
	})

	memoryRoot.AddCommand(&cobra.Command{
		Use:     "clear <identity>",
		Short:   "Reset one conversation's history and affection",
		Args:    cobra.ExactArgs(1),
		Example: "  aiko memory clear guest-1",
		RunE: func(cmd *cobra.Command, args []string) error {
			return memoryClearCmd(args[0])
		},
	})

	return memoryRoot
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show build/version metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}
