package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/folio/internal/content"
	"github.com/ziadkadry99/folio/internal/navspy"
)

var navcheckCmd = &cobra.Command{
	Use:   "navcheck",
	Short: "Check that every sidebar link has a matching section",
	Long: `Renders the about pages and reports sidebar entries whose anchor
is missing from the page. Exits non-zero when any are missing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		library, err := content.Load(contentFS(cfg))
		if err != nil {
			return fmt.Errorf("loading about pages: %w", err)
		}

		failed := 0
		for _, tab := range content.Tabs {
			page, ok := library.Page(tab.Slug)
			if !ok {
				continue
			}
			item := tab.NavItem()
			groups := groupIDs(item.Children)
			var errs, infos []string
			for _, id := range content.Missing([]navspy.NavItem{item}, page.Anchors) {
				if groups[id] {
					infos = append(infos, id)
				} else {
					errs = append(errs, id)
				}
			}
			if len(errs) > 0 {
				failed++
				fmt.Printf("MISSING %s: %s\n", tab.Href(), strings.Join(errs, ", "))
			} else {
				fmt.Printf("ok      %s\n", tab.Href())
			}
			if len(infos) > 0 {
				fmt.Printf("info    %s: label-only groups %s\n", tab.Href(), strings.Join(infos, ", "))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d page(s) have sidebar links without sections", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(navcheckCmd)
}

// groupIDs collects the ids of nested items that have children. Such
// groups may be labels without a section of their own.
func groupIDs(items []navspy.NavItem) map[string]bool {
	out := make(map[string]bool)
	var walk func([]navspy.NavItem)
	walk = func(items []navspy.NavItem) {
		for _, it := range items {
			if len(it.Children) > 0 {
				out[it.ID] = true
				walk(it.Children)
			}
		}
	}
	walk(items)
	return out
}
