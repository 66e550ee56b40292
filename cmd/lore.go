package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Yates-Labs/narraitor/internal/lore"
	"github.com/spf13/cobra"
)

var (
	loreWorld    string
	loreCategory string
	loreTags     []string
	loreMax      int
	loreTopK     int
	loreForce    bool
	loreSource   string
)

var errWorldRequired = errors.New("--world is required")

var loreCmd = &cobra.Command{
	Use:   "lore",
	Short: "Inspect and index world lore",
}

var loreSearchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Search stored lore facts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		o, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer o.Close()

		opts := lore.SearchOptions{WorldID: loreWorld, Category: lore.Category(loreCategory), Tags: loreTags}
		if len(args) == 1 {
			opts.SearchTerm = args[0]
		}
		printFacts(cmd.OutOrStdout(), o.Lore.SearchFacts(opts))
		return nil
	},
}

var loreExtractCmd = &cobra.Command{
	Use:   "extract [text]",
	Short: "Extract lore facts from a passage and store them",
	Long: `Run the rule-based extractor over a passage of narrative.

Example:
  narraitor lore extract --world w1 "Sir Aldric rode to the Tower of Dawn."`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if loreWorld == "" {
			return errWorldRequired
		}
		source := lore.Source(loreSource)
		if !source.Valid() {
			return fmt.Errorf("invalid source %q", loreSource)
		}
		ctx := context.Background()
		o, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer o.Close()

		facts := o.Lore.ExtractFactsFromText(ctx, args[0], loreWorld, source)
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Extracted %d facts", len(facts))))
		printFacts(cmd.OutOrStdout(), facts)
		return nil
	},
}

var loreContextCmd = &cobra.Command{
	Use:   "context",
	Short: "Show the lore digest handed to prompts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loreWorld == "" {
			return errWorldRequired
		}
		ctx := context.Background()
		o, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer o.Close()

		lc := o.Lore.GetLoreContext(loreWorld, loreTags, loreMax)
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Lore context (%d facts)", lc.FactCount)))
		fmt.Fprintln(out, bodyStyle.Render(lc.ContextSummary))
		fmt.Fprintln(out)
		fmt.Fprintln(out, mutedStyle.Render(lore.FormatFacts(lc.RelevantFacts)))
		return nil
	},
}

var loreIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed canonical facts into the Milvus recall index",
	Long: `Index canonical lore into Milvus for semantic recall.

Required environment variables:
  NARRAITOR_MILVUS_ADDRESS  - Milvus server address (e.g. localhost:19530)
  OPENAI_API_KEY            - OpenAI API key for embeddings`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		o, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer o.Close()
		if o.LoreIndex == nil {
			return fmt.Errorf("lore recall is not configured: set NARRAITOR_MILVUS_ADDRESS")
		}

		n, err := o.LoreIndex.IndexWorld(ctx, loreWorld, loreForce)
		if err != nil {
			return fmt.Errorf("failed to index lore: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Indexed %d facts", n)))
		return nil
	},
}

var loreRecallCmd = &cobra.Command{
	Use:   "recall [query]",
	Short: "Find the indexed facts closest in meaning to a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		o, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer o.Close()
		if o.LoreIndex == nil {
			return fmt.Errorf("lore recall is not configured: set NARRAITOR_MILVUS_ADDRESS")
		}

		facts, err := o.LoreIndex.Recall(ctx, args[0], loreWorld, loreTopK)
		if err != nil {
			return err
		}
		printFacts(cmd.OutOrStdout(), facts)
		return nil
	},
}

var loreImportCmd = &cobra.Command{
	Use:   "import [repository]",
	Short: "Import markdown lore notes from a Git repository",
	Long: `Import worldbuilding notes from a Git repository (local path or remote URL).

Each markdown or text file under a directory named after a lore category
(characters, locations, events, rules, items, organizations) becomes a
canonical fact. The first "# " heading is the title and a "Tags:" line
supplies tags. Titles already known for the world are skipped.

Examples:
  narraitor lore import ./eldoria-lore --world w1
  narraitor lore import https://github.com/user/eldoria-lore --world w1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if loreWorld == "" {
			return errWorldRequired
		}
		ctx := context.Background()
		o, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer o.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, mutedStyle.Render("→ Reading "+args[0]+"..."))
		res, err := o.ImportLore(ctx, args[0], loreWorld)
		if err != nil {
			return fmt.Errorf("lore import failed: %w", err)
		}
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Imported %d facts from %d documents at %s (%d skipped)",
			len(res.Created), res.Documents, res.Commit, res.Skipped)))
		if res.Indexed > 0 {
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Indexed %d facts for recall", res.Indexed)))
		}
		printFacts(out, res.Created)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loreCmd)
	loreCmd.AddCommand(loreSearchCmd, loreExtractCmd, loreContextCmd, loreIndexCmd, loreRecallCmd, loreImportCmd)

	loreCmd.PersistentFlags().StringVar(&loreWorld, "world", "", "World ID")
	loreSearchCmd.Flags().StringVar(&loreCategory, "category", "", "Filter by category")
	loreSearchCmd.Flags().StringSliceVar(&loreTags, "tags", nil, "Filter by any of these tags")
	loreContextCmd.Flags().StringSliceVar(&loreTags, "tags", nil, "Prefer facts with these tags")
	loreContextCmd.Flags().IntVar(&loreMax, "max", lore.DefaultMaxFacts, "Maximum facts in the digest")
	loreExtractCmd.Flags().StringVar(&loreSource, "source", string(lore.SourceNarrative), "Source recorded on extracted facts")
	loreIndexCmd.Flags().BoolVar(&loreForce, "force", false, "Delete and re-embed already indexed facts")
	loreRecallCmd.Flags().IntVar(&loreTopK, "topk", 5, "Number of facts to recall")
}

func printFacts(w io.Writer, facts []lore.Fact) {
	if len(facts) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No facts found"))
		return
	}
	for _, f := range facts {
		header := fmt.Sprintf("%s [%s]", f.Title, f.Category)
		if !f.IsCanonical {
			header += " (non-canonical)"
		}
		fmt.Fprintln(w, titleStyle.Render(header))
		if f.Content != "" {
			fmt.Fprintln(w, bodyStyle.Render("  "+f.Content))
		}
		if len(f.Tags) > 0 {
			fmt.Fprintln(w, mutedStyle.Render("  tags: "+strings.Join(f.Tags, ", ")))
		}
	}
}
