package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/folio/internal/posts"
	"github.com/ziadkadry99/folio/internal/progress"
)

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Back up, restore and publish posts",
}

var postsExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write every post and tag to a JSON archive",
	Long:  `Writes all posts, including drafts and scheduled posts, and all tags to file, or stdout when no file is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPostsExport,
}

var postsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load posts and tags from a JSON archive",
	Long: `Creates the archive's posts in the configured backend. Posts whose id
already exists are skipped and tags are matched by slug, so importing the
same archive twice is harmless.`,
	Args: cobra.ExactArgs(1),
	RunE: runPostsImport,
}

var postsPublishDueCmd = &cobra.Command{
	Use:   "publish-due",
	Short: "Publish scheduled posts whose time has passed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store posts.Store) error {
			n, err := (&posts.Publisher{Store: store}).Tick(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Published %d scheduled post(s)\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(postsCmd)
	postsCmd.AddCommand(postsExportCmd)
	postsCmd.AddCommand(postsImportCmd)
	postsCmd.AddCommand(postsPublishDueCmd)
}

// withStore opens the configured backend for a one-shot command.
func withStore(fn func(ctx context.Context, store posts.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := cfg.EnsureSecret(); err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	be, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()
	return fn(context.Background(), be.Store)
}

func runPostsExport(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, store posts.Store) error {
		archive, err := posts.Export(ctx, store, time.Now())
		if err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("creating %s: %w", args[0], err)
			}
			defer f.Close()
			out = f
		}
		if err := archive.Write(out); err != nil {
			return fmt.Errorf("writing archive: %w", err)
		}
		if len(args) == 1 {
			fmt.Fprintf(os.Stderr, "Exported %d posts and %d tags to %s\n", len(archive.Posts), len(archive.Tags), args[0])
		}
		return nil
	})
}

func runPostsImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()
	archive, err := posts.ReadArchive(f)
	if err != nil {
		return err
	}

	return withStore(func(ctx context.Context, store posts.Store) error {
		reporter := progress.NewReporter("Importing posts")
		reporter.Start(len(archive.Posts))
		res, err := posts.Import(ctx, store, archive, func(done int, p *posts.Post) {
			reporter.Update(done, posts.Excerpt(p.Content, 40))
		})
		reporter.Finish()
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d posts (%d skipped, %d new tags)\n", res.Created, res.Skipped, res.Tags)
		return nil
	})
}
