package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"hadiqa-go/internal/app"
	"hadiqa-go/internal/auth"
	"hadiqa-go/internal/config"
	"hadiqa-go/internal/hq"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// passphraseEnv lets scripts supply the state passphrase without a terminal.
const passphraseEnv = "HADIQA_PASSPHRASE"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a HadiqaApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Refresh", "Serve").
func newApp(ctx context.Context, operation string) (*app.HadiqaApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewHadiqaApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// readPassphrase prompts on the terminal without echo, or falls back to
// HADIQA_PASSPHRASE and then a plain line on stdin.
func readPassphrase(prompt string) (string, error) {
	if p := os.Getenv(passphraseEnv); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		if len(b) == 0 {
			return "", fmt.Errorf("empty passphrase")
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return "", fmt.Errorf("empty passphrase")
	}
	return line, nil
}

func printEntries(a *app.HadiqaApp, entries []hq.VideoEntry) {
	if len(entries) == 0 {
		fmt.Println("No videos.")
		return
	}
	for _, e := range entries {
		stats := a.Stats(e)
		progress := ""
		if p := a.Progress(e.ID); p > 0 {
			progress = fmt.Sprintf("  %3.0f%%", p*100)
		}
		fmt.Printf("%-5s  %-32s  %6s views  %6s likes  %s%s\n",
			e.Kind,
			e.ID,
			hq.FormatBigNumber(stats.Views),
			hq.FormatBigNumber(stats.Likes),
			e.Title,
			progress,
		)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hadiqa",
	Short: "Horror video feed",
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

		cfg := app.ConfigFromDefaults(defaults)

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Server:   %s\n", cfg.Server.Addr)
		fmt.Printf("Set %s for the oracle and %s for admin tokens.\n", cfg.Oracle.APIKeyEnv, cfg.Server.JWTSecretEnv)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Store:      %s\n", cfg.Store.Type)
		fmt.Printf("Upload:     %s (%s)\n", cfg.Upload.Type, cfg.Upload.Name)
		fmt.Printf("Offline:    %s\n", cfg.Offline.Type)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		fmt.Printf("Catalog:    %s/%s tag=%s\n", cfg.Catalog.BaseURL, cfg.Catalog.CloudName, cfg.Catalog.Tag)
		fmt.Printf("Oracle:     %s (daily limit %d)\n", cfg.Oracle.Model, cfg.Oracle.DailyLimit)
		fmt.Printf("Server:     %s\n", cfg.Server.Addr)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := newApp(ctx, "Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Refresh(ctx, false); err != nil {
			return fmt.Errorf("refreshing catalog: %w", err)
		}
		return a.Serve(ctx)
	},
}

// refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the latest catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		hard, _ := cmd.Flags().GetBool("hard")

		a, err := newApp(cmd.Context(), "Refresh")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Refresh(cmd.Context(), hard)
		if err != nil {
			return fmt.Errorf("refreshing: %w", err)
		}

		fmt.Printf("Catalog holds %d video(s)\n", len(entries))
		return nil
	},
}

// feed command
var feedCmd = &cobra.Command{
	Use:   "feed [VIEW]",
	Short: "List a feed (home, trend, liked, saved, unwatched, hidden)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		refresh, _ := cmd.Flags().GetBool("refresh")

		a, err := newApp(cmd.Context(), "Feed")
		if err != nil {
			return err
		}
		defer a.Close()

		if refresh {
			if _, err := a.Refresh(cmd.Context(), false); err != nil {
				return fmt.Errorf("refreshing: %w", err)
			}
		}

		view := string(hq.ViewHome)
		if len(args) > 0 {
			view = args[0]
		}
		entries, err := a.Feed(view)
		if err != nil {
			return err
		}
		printEntries(a, entries)
		return nil
	},
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search video titles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Search")
		if err != nil {
			return err
		}
		defer a.Close()

		printEntries(a, a.Search(strings.Join(args, " ")))
		return nil
	},
}

// interactionCmd builds a command applying action to a single video id.
func interactionCmd(action, short, done string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), "Interact")
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Interact(cmd.Context(), action, args[0]); err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", done, args[0])
			return nil
		},
	}
}

// progress command
var progressCmd = &cobra.Command{
	Use:   "progress ID VALUE",
	Short: "Record watch progress (0 to 1)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("parsing progress: %w", err)
		}

		a, err := newApp(cmd.Context(), "RecordProgress")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RecordProgress(cmd.Context(), args[0], value); err != nil {
			return err
		}
		fmt.Printf("Progress for %s: %.0f%%\n", args[0], a.Progress(args[0])*100)
		return nil
	},
}

// admin command
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administer the catalog",
}

var adminDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Hide a video from every feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "DeleteVideo")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteVideo(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted: %s\n", args[0])
		return nil
	},
}

var adminUndeleteCmd = &cobra.Command{
	Use:   "undelete ID",
	Short: "Bring back a deleted video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "UndeleteVideo")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.UndeleteVideo(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Undeleted: %s\n", args[0])
		return nil
	},
}

var adminUploadCmd = &cobra.Command{
	Use:   "upload PATH",
	Short: "Upload a video, or every video in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		category, _ := cmd.Flags().GetString("category")
		width, _ := cmd.Flags().GetInt("width")
		height, _ := cmd.Flags().GetInt("height")
		recursive, _ := cmd.Flags().GetBool("recursive")
		meta := hq.UploadMeta{
			Title:    title,
			Category: category,
			Width:    width,
			Height:   height,
		}

		a, err := newApp(cmd.Context(), "Upload")
		if err != nil {
			return err
		}
		defer a.Close()

		if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
			entries, err := a.UploadDir(cmd.Context(), args[0], recursive, meta)
			for _, e := range entries {
				fmt.Printf("Uploaded %s (%s)\n", e.ID, e.Kind)
			}
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}
			fmt.Printf("Uploaded %d video(s)\n", len(entries))
			return nil
		}

		entry, err := a.Upload(cmd.Context(), args[0], meta)
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}

		fmt.Printf("Uploaded %s (%s)\n%s\n", entry.ID, entry.Kind, entry.URL)
		return nil
	},
}

var adminCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the state store schema and upload target",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Check")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.CheckStore(); err != nil {
			return err
		}
		fmt.Println("State store OK.")
		if err := a.CheckUpload(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Upload target OK.")
		return nil
	},
}

var adminCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Categories")
		if err != nil {
			return err
		}
		defer a.Close()

		for _, c := range a.Categories() {
			fmt.Println(c)
		}
		return nil
	},
}

var adminCategoriesAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a category",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "AddCategory")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.AddCategory(cmd.Context(), strings.Join(args, " "))
	},
}

var adminCategoriesRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a category",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "RemoveCategory")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.RemoveCategory(cmd.Context(), strings.Join(args, " "))
	},
}

var adminTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin bearer token for the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		duration, _ := cmd.Flags().GetDuration("duration")

		a, err := newApp(cmd.Context(), "AdminToken")
		if err != nil {
			return err
		}
		defer a.Close()

		token, err := a.AdminToken(subject, duration)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

// analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Ask the oracle to describe a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Analyze")
		if err != nil {
			return err
		}
		defer a.Close()

		insight, err := a.Analyze(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Summary: %s\n", insight.Summary)
		fmt.Printf("Horror:  %.1f/10\n", insight.HorrorLevel)
		fmt.Printf("Tags:    %s\n", strings.Join(insight.Tags, ", "))
		return nil
	},
}

// cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the offline cache",
}

var cacheWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Download the newest videos for offline playback",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := newApp(ctx, "WarmCache")
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Refresh(ctx, false); err != nil {
			return fmt.Errorf("refreshing: %w", err)
		}
		n, err := a.WarmCache(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Cached %d video(s)\n", n)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the offline cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ClearCache")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ClearCache(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Offline cache cleared.")
		return nil
	},
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the offline cache holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "CacheStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.CacheStatus(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Ready:  %v\n", st.Ready)
		fmt.Printf("Videos: %d\n", st.Count)
		fmt.Printf("Size:   %s bytes\n", hq.FormatBigNumber(st.Bytes))
		return nil
	},
}

// state command
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Export or import local state",
}

var stateExportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Write an encrypted copy of local state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "ExportState")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.OpenFile(args[0], os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		if err := a.ExportState(cmd.Context(), f, passphrase); err != nil {
			f.Close()
			os.Remove(args[0])
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing export file: %w", err)
		}
		fmt.Printf("State exported to %s\n", args[0])
		return nil
	},
}

var stateKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the keys held by the state store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "StateKeys")
		if err != nil {
			return err
		}
		defer a.Close()

		keys, err := a.StateKeys(cmd.Context())
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

var stateImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace local state from an encrypted export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "ImportState")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening export file: %w", err)
		}
		defer f.Close()

		if err := a.ImportState(cmd.Context(), f, passphrase); err != nil {
			return err
		}
		fmt.Printf("State imported from %s\n", args[0])
		return nil
	},
}

// oracle command
var oracleCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Talk to the oracle",
}

var oracleTalkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Run a live voice session over raw PCM files",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")

		ctx, stop := signalContext()
		defer stop()

		a, err := newApp(ctx, "Talk")
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer out.Close()

		if err := a.Talk(ctx, input, out); err != nil {
			return err
		}
		used, limit := a.Usage(ctx)
		fmt.Printf("Session ended (%d/%d exchanges today)\n", used, limit)
		return nil
	},
}

var oracleHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show voice session transcripts",
	RunE: func(cmd *cobra.Command, args []string) error {
		forget, _ := cmd.Flags().GetBool("clear")

		a, err := newApp(cmd.Context(), "ChatHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		if forget {
			return a.ClearChatHistory(cmd.Context())
		}

		msgs := a.ChatHistory(cmd.Context())
		if len(msgs) == 0 {
			fmt.Println("No transcripts.")
			return nil
		}
		for _, m := range msgs {
			fmt.Printf("%-5s  %s\n", m.Role, m.Text)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// admin subcommands
	adminCmd.AddCommand(adminDeleteCmd)
	adminCmd.AddCommand(adminUndeleteCmd)
	adminCmd.AddCommand(adminUploadCmd)
	adminUploadCmd.Flags().String("title", "", "Video title")
	adminUploadCmd.Flags().String("category", "", "Video category (defaults to the first category)")
	adminUploadCmd.Flags().Int("width", 0, "Video width in pixels")
	adminUploadCmd.Flags().Int("height", 0, "Video height in pixels")
	adminUploadCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	adminCmd.AddCommand(adminCheckCmd)
	adminCmd.AddCommand(adminCategoriesCmd)
	adminCategoriesCmd.AddCommand(adminCategoriesAddCmd)
	adminCategoriesCmd.AddCommand(adminCategoriesRemoveCmd)
	adminCmd.AddCommand(adminTokenCmd)
	adminTokenCmd.Flags().String("subject", "cli", "Token subject")
	adminTokenCmd.Flags().Duration("duration", auth.DefaultTokenDuration, "Token lifetime")

	// cache subcommands
	cacheCmd.AddCommand(cacheWarmCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// state subcommands
	stateCmd.AddCommand(stateExportCmd)
	stateCmd.AddCommand(stateImportCmd)
	stateCmd.AddCommand(stateKeysCmd)

	// oracle subcommands
	oracleCmd.AddCommand(oracleTalkCmd)
	oracleTalkCmd.Flags().String("input", "", "Raw 16 kHz mono PCM16 input file")
	oracleTalkCmd.Flags().String("output", "reply.pcm", "Raw 24 kHz mono PCM16 output file")
	oracleTalkCmd.MarkFlagRequired("input")
	oracleCmd.AddCommand(oracleHistoryCmd)
	oracleHistoryCmd.Flags().Bool("clear", false, "Forget every transcript")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().Bool("hard", false, "Drop the cached catalog before fetching")
	rootCmd.AddCommand(feedCmd)
	feedCmd.Flags().Bool("refresh", false, "Fetch the latest catalog first")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(interactionCmd("like", "Like a video", "Liked"))
	rootCmd.AddCommand(interactionCmd("unlike", "Remove a like", "Unliked"))
	rootCmd.AddCommand(interactionCmd("dislike", "Dislike a video and hide it", "Disliked"))
	rootCmd.AddCommand(interactionCmd("save", "Save a video", "Saved"))
	rootCmd.AddCommand(interactionCmd("unsave", "Remove a saved video", "Unsaved"))
	rootCmd.AddCommand(interactionCmd("restore", "Bring back a disliked video", "Restored"))
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(oracleCmd)
}
