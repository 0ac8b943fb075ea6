package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dedupe-go/internal/app"
	"dedupe-go/internal/config"
	"dedupe-go/internal/dedupe"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// configPath returns the --config flag, falling back to the default location.
func configPath() (string, error) {
	if p, _ := rootCmd.PersistentFlags().GetString("config"); p != "" {
		return p, nil
	}
	defaults, err := app.GetDefaults()
	if err != nil {
		return "", fmt.Errorf("getting defaults: %w", err)
	}
	return defaults.ConfigPath, nil
}

// loadConfig reads the config file and applies environment overrides.
func loadConfig() (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation names the CLI command being run.
func newApp(ctx context.Context, operation string) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if verbose, _ := rootCmd.PersistentFlags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	a, err := app.NewApp(ctx, cfg, operation, app.Options{Level: level})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "dedupe",
	Short:        "Content-addressed file storage with deduplication",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		path, err := configPath()
		if err != nil {
			return err
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(path, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", path)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("# Configuration from %s\n\n", path)
		m := &config.Manager{}
		return m.Write(os.Stdout, cfg)
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.Migrate(cmd.Context(), cfg); err != nil {
			return err
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

// save command
var saveCmd = &cobra.Command{
	Use:   "save FILE",
	Short: "Save a file under its unique name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")

		a, err := newApp(cmd.Context(), "save")
		if err != nil {
			return err
		}
		defer a.Close()

		unique, err := a.Save(cmd.Context(), args[0], name)
		if err != nil {
			return fmt.Errorf("save failed: %w", err)
		}
		fmt.Println(unique)
		return nil
	},
}

// resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Look up names in the record history",
}

var resolveOriginalCmd = &cobra.Command{
	Use:   "original NAME",
	Short: "Print the latest original name of a unique name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "resolve")
		if err != nil {
			return err
		}
		defer a.Close()

		original, err := a.ResolveOriginal(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(original)
		return nil
	},
}

var resolveUniqueCmd = &cobra.Command{
	Use:   "unique NAME",
	Short: "Print the latest unique name saved for an original name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "resolve")
		if err != nil {
			return err
		}
		defer a.Close()

		unique, err := a.ResolveUnique(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(unique)
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log NAME",
	Short: "View the records of an original or unique name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "log")
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.Log(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No records.")
			return nil
		}

		for _, r := range records {
			fmt.Printf("#%d  %s  %s  <-  %s\n",
				r.ID,
				r.CreatedAt.Format("2006-01-02 15:04:05"),
				r.UniqueName,
				r.OriginalName,
			)
		}
		return nil
	},
}

// collect command
var collectCmd = &cobra.Command{
	Use:   "collect DIR",
	Short: "Save every file in a directory and register it as an asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := dedupe.CollectOptions{}
		opts.Collection, _ = cmd.Flags().GetString("collection")
		opts.Field, _ = cmd.Flags().GetString("field")
		opts.Prefix, _ = cmd.Flags().GetString("prefix")
		opts.Plain, _ = cmd.Flags().GetBool("plain")

		a, err := newApp(cmd.Context(), "collect")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Collect(cmd.Context(), args[0], opts)
		if err != nil {
			return fmt.Errorf("collect failed: %w", err)
		}

		fmt.Printf("Saved %d file(s), %d vanished, %d error(s)\n", result.Saved, result.Vanished, result.Errors)
		if result.MissingReferences > 0 {
			fmt.Printf("%d stylesheet reference(s) to missing files left unchanged; see the log.\n", result.MissingReferences)
		}
		if result.Interrupted {
			fmt.Println("Interrupted.")
		}
		return nil
	},
}

// asset command
var assetCmd = &cobra.Command{
	Use:   "asset",
	Short: "Manage assets",
}

var assetAddCmd = &cobra.Command{
	Use:   "add COLLECTION FIELD=NAME...",
	Short: "Register an asset referencing stored files",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := app.ParseAssetFields(args[1:])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "asset add")
		if err != nil {
			return err
		}
		defer a.Close()

		asset, err := a.AddAsset(cmd.Context(), args[0], files)
		if err != nil {
			return err
		}
		fmt.Printf("Added asset #%d to %s\n", asset.ID, asset.Collection)
		return nil
	},
}

// dedupe command
var dedupeCmd = &cobra.Command{
	Use:   "dedupe [COLLECTION...]",
	Short: "Migrate the files of existing assets to unique names",
	Long: "Re-saves every file referenced by an asset under its unique name and " +
		"deletes the original. Interrupting finishes the current asset; " +
		"running again resumes where the last run stopped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "dedupe")
		if err != nil {
			return err
		}
		defer a.Close()

		var progress func(dedupe.Result)
		interactive := term.IsTerminal(int(os.Stdout.Fd()))
		if interactive {
			progress = func(r dedupe.Result) {
				fmt.Printf("\rupdated %d  skipped %d  errors %d", r.Updated, r.Skipped, r.Errors)
			}
		}

		start := time.Now()
		result, err := a.Dedupe(cmd.Context(), progress, args...)
		if interactive && result.Processed() > 0 {
			fmt.Println()
		}
		if err != nil {
			return fmt.Errorf("dedupe failed: %w", err)
		}

		fmt.Printf("Deduplicated %d asset(s), skipped %d, %d error(s) in %s\n",
			result.Updated, result.Skipped, result.Errors,
			time.Since(start).Truncate(time.Millisecond))
		if result.Interrupted {
			fmt.Println("Interrupted; run again to resume.")
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "history")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt.Valid {
				duration = r.FinishedAt.Time.Sub(r.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-10s  %s  %-11s  %d/%d/%d  %s\n",
				r.ID,
				r.Operation,
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Status,
				r.Updated, r.Skipped, r.Errors,
				duration,
			)
		}
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup FILE",
	Short: "Write a snapshot of the sqlite record database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "backup")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.BackupDatabase(args[0]); err != nil {
			return err
		}
		fmt.Printf("Database written to %s\n", args[0])
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored files over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		gin.SetMode(gin.ReleaseMode)

		a, err := newApp(cmd.Context(), "serve")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default $DEDUPE_CONFIG_PATH or ~/.config/dedupe.toml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// resolve subcommands
	resolveCmd.AddCommand(resolveOriginalCmd)
	resolveCmd.AddCommand(resolveUniqueCmd)

	// asset subcommands
	assetCmd.AddCommand(assetAddCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(saveCmd)
	saveCmd.Flags().String("name", "", "Name to save the file under (default: the file's base name)")
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntP("limit", "n", 20, "Maximum number of records to show")
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().StringP("collection", "c", "", "Collection to register assets in (required)")
	collectCmd.MarkFlagRequired("collection")
	collectCmd.Flags().String("field", dedupe.DefaultField, "Asset field to store the file name in")
	collectCmd.Flags().String("prefix", "", "Name prefix for collected files")
	collectCmd.Flags().Bool("plain", false, "Store files under their own names instead of unique ones")
	rootCmd.AddCommand(assetCmd)
	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(serveCmd)
}
