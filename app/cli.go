// Package app wires the command line and terminal UI around the library and
// search packages.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"quietlibrary/config"
	"quietlibrary/library"
	"quietlibrary/search"
)

var version = "0.3.0"

// Styles shared by CLI output and the TUI.
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7aa2f7"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a9b1d6"))

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7dcfff"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9ece6a")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e0af68")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f7768e")).
			Bold(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#565f89"))
)

// appEnv carries the shared state every command needs.
type appEnv struct {
	appDir   string
	settings config.Settings
	logger   *slog.Logger
	store    *library.Store
	sctx     *search.Context
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:")+" "+err.Error())
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var verbose bool
	env := &appEnv{}

	root := &cobra.Command{
		Use:           "quietlibrary",
		Short:         "Full-text search over a personal document library",
		Long:          "quietlibrary indexes the PDF, text, Markdown, and HTML files in your library folders and searches them instantly.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.init(verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if term.IsTerminal(int(os.Stdout.Fd())) {
				return runTUI(env)
			}
			return cmd.Help()
		},
	}
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	root.AddCommand(
		newIndexCmd(env),
		newUpdateCmd(env),
		newSearchCmd(env),
		newPagesCmd(env),
		newFoldersCmd(env),
		newBookmarksCmd(env),
		newCacheCmd(env),
	)
	return root
}

func (env *appEnv) init(verbose bool) error {
	appDir, err := config.AppDir()
	if err != nil {
		return fmt.Errorf("resolve app directory: %w", err)
	}
	settings, err := config.LoadSettings(appDir)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	env.appDir = appDir
	env.settings = settings
	env.logger = logger
	env.store = library.NewStore(appDir)
	env.sctx = search.NewContext(appDir, settings, logger)
	return nil
}

func (env *appEnv) libraryFolders() ([]string, error) {
	folders, err := env.store.Folders()
	if err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		return nil, errors.New("no folders in library; add one with 'quietlibrary folders add <dir>'")
	}
	return folders, nil
}

func newIndexCmd(env *appEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the search index from scratch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			folders, err := env.libraryFolders()
			if err != nil {
				return err
			}
			fmt.Println(infoStyle.Render("Rebuilding index..."))
			stats, err := env.sctx.Rebuild(cmd.Context(), folders)
			if err != nil {
				return err
			}
			printStats(stats)
			return nil
		},
	}
}

func newUpdateCmd(env *appEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Update the index with new, changed, and deleted files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			folders, err := env.libraryFolders()
			if err != nil {
				return err
			}
			stats, err := env.sctx.Update(cmd.Context(), folders)
			if err != nil {
				return err
			}
			if stats.Files == 0 && stats.Deleted == 0 && stats.Failed == 0 {
				fmt.Println(infoStyle.Render("Index is up to date."))
				return nil
			}
			printStats(stats)
			return nil
		},
	}
}

func printStats(stats *search.Stats) {
	line := fmt.Sprintf("%d files, %d pages indexed", stats.Files, stats.Pages)
	if stats.Deleted > 0 {
		line += fmt.Sprintf(", %d removed", stats.Deleted)
	}
	line += fmt.Sprintf(" in %.1fs", stats.Elapsed.Seconds())
	fmt.Println(successStyle.Render("✓ ") + infoStyle.Render(line))
	if stats.Failed > 0 {
		fmt.Println(warningStyle.Render(fmt.Sprintf("  %d files failed extraction (run with --verbose for details)", stats.Failed)))
	}
}

func newSearchCmd(env *appEnv) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if limit <= 0 {
				limit = env.settings.SearchLimit
			}

			results, err := env.sctx.Search(query, limit)
			if errors.Is(err, search.ErrIndexUnavailable) {
				fmt.Println(warningStyle.Render("No index yet, scanning folders directly (build one with 'quietlibrary index')."))
				results, err = scanSearch(env.sctx, env.store, query, limit)
			}
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Println(infoStyle.Render("No matches."))
				return nil
			}
			printResults(results)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of result rows")
	return cmd
}

func printResults(results []search.Result) {
	for i, r := range results {
		head := headerStyle.Render(r.Title)
		if r.Page != nil {
			head += infoStyle.Render(fmt.Sprintf("  (page %d)", *r.Page))
		}
		fmt.Printf("%s\n%s\n", head, pathStyle.Render(r.Path))
		if r.Snippet != "" {
			fmt.Println(infoStyle.Render("  " + r.Snippet))
		}
		if i < len(results)-1 {
			fmt.Println(separatorStyle.Render(strings.Repeat("─", 60)))
		}
	}
	fmt.Println(separatorStyle.Render(fmt.Sprintf("%d results", len(results))))
}

func newPagesCmd(env *appEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "pages <file> <query>...",
		Short: "List the pages of one document that match a query",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absPath(args[0])
			if err != nil {
				return err
			}
			query := strings.Join(args[1:], " ")

			pages, err := env.sctx.SearchPages(path, query, 0)
			if err != nil {
				return err
			}
			if len(pages) == 0 {
				fmt.Println(infoStyle.Render("No matching pages."))
				return nil
			}

			parts := make([]string, len(pages))
			for i, p := range pages {
				parts[i] = fmt.Sprintf("%d", p)
			}
			fmt.Println(headerStyle.Render("Matching pages: ") + infoStyle.Render(strings.Join(parts, ", ")))
			return nil
		},
	}
}

func newFoldersCmd(env *appEnv) *cobra.Command {
	folders := &cobra.Command{
		Use:   "folders",
		Short: "Manage the watched library folders",
	}

	folders.AddCommand(&cobra.Command{
		Use:   "add <dir>",
		Short: "Add a folder to the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.store.AddFolder(args[0]); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ ") + infoStyle.Render("Folder added. Run 'quietlibrary update' to index it."))
			return nil
		},
	})

	folders.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the library folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := env.store.Folders()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println(infoStyle.Render("Library is empty."))
				return nil
			}
			for _, f := range list {
				fmt.Println(pathStyle.Render(f))
			}
			return nil
		},
	})

	folders.AddCommand(&cobra.Command{
		Use:   "remove <dir>",
		Short: "Remove a folder from the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.store.RemoveFolder(args[0]); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ ") + infoStyle.Render("Folder removed. Run 'quietlibrary update' to drop its documents."))
			return nil
		},
	})

	return folders
}

func newBookmarksCmd(env *appEnv) *cobra.Command {
	bookmarks := &cobra.Command{
		Use:   "bookmarks",
		Short: "Manage reading bookmarks",
	}

	var page int
	var title string
	add := &cobra.Command{
		Use:   "add <file>",
		Short: "Bookmark a place in a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absPath(args[0])
			if err != nil {
				return err
			}
			bm, err := env.store.AddBookmark(path, page, title)
			if err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ ") + infoStyle.Render("Bookmark saved: "+bm.ID))
			return nil
		},
	}
	add.Flags().IntVar(&page, "page", 0, "page number to bookmark")
	add.Flags().StringVar(&title, "title", "", "bookmark label")
	bookmarks.AddCommand(add)

	bookmarks.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List bookmarks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := env.store.Bookmarks()
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Println(infoStyle.Render("No bookmarks."))
				return nil
			}
			for _, bm := range all {
				label := bm.Title
				if label == "" {
					label = bm.Path
				}
				line := headerStyle.Render(label)
				if bm.Page > 0 {
					line += infoStyle.Render(fmt.Sprintf("  (page %d)", bm.Page))
				}
				fmt.Println(line)
				fmt.Println(separatorStyle.Render("  " + bm.ID + "  " + bm.CreatedAt.Local().Format("2006-01-02 15:04")))
			}
			return nil
		},
	})

	bookmarks.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.store.RemoveBookmark(args[0]); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ ") + infoStyle.Render("Bookmark removed."))
			return nil
		},
	})

	return bookmarks
}

// absPath resolves a user-supplied file argument to the absolute form the
// index stores.
func absPath(p string) (string, error) {
	return filepath.Abs(p)
}

func newCacheCmd(env *appEnv) *cobra.Command {
	cache := &cobra.Command{
		Use:   "cache",
		Short: "Manage the extraction cache",
	}
	cache.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all cached extractions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.sctx.Cache().Clear(); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ ") + infoStyle.Render("Extraction cache cleared."))
			return nil
		},
	})
	return cache
}
