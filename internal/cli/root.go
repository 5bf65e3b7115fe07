package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"upload-server-go/internal/app"
	"upload-server-go/internal/config"
	"upload-server-go/internal/sentryx"
	"upload-server-go/internal/workspace"
)

// Execute runs the upload-server command line.
func Execute(version, commit, date string) error {
	return newRootCmd(version, commit, date).Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "upload-server",
		Short:        "Write uploaded files under a fixed storage root",
		Long:         `upload-server accepts relative paths with file contents and writes them atomically below its storage root.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
		RunE:         runServe,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./upload-server.yaml or /etc/upload-server/upload-server.yaml)")
	pf.String("root", "", "storage root directory (default /var/CoH-Data)")
	pf.String("host", "", "listen host (default 0.0.0.0)")
	pf.Int("port", 0, "listen port (default 80)")
	pf.Bool("create-parents", false, "create missing parent directories inside the storage root")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newResolveCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket upload server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	defer sentryx.RecoverPanicAndCapture()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return app.Run(cfg)
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <path>",
		Short: "Show where a relative path would be written, or why it is rejected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := app.ConfigureLogging(cfg); err != nil {
				return err
			}
			return resolvePath(cmd.OutOrStdout(), cfg.StorageRoot, args[0])
		},
	}
}

func resolvePath(out io.Writer, rootDir, userPath string) error {
	root, err := workspace.NewStorageRoot(rootDir)
	if err != nil {
		return err
	}

	resolved, err := workspace.NewResolver(root).Resolve(userPath)
	if err != nil {
		switch {
		case workspace.IsEscape(err):
			return fmt.Errorf("rejected (escapes storage root): %w", err)
		case workspace.IsMalformed(err):
			return fmt.Errorf("rejected (malformed path): %w", err)
		}
		return err
	}

	fmt.Fprintln(out, resolved.String())
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	cfgFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(config.LoadOptions{
		ConfigPath: cfgFile,
		Flags:      cmd.Flags(),
	})
}
