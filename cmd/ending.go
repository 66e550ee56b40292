package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/Yates-Labs/narraitor/internal/narrative"
	"github.com/spf13/cobra"
)

var (
	endingSession   string
	endingCharacter string
	endingWorld     string
	endingType      string
	endingTone      string
	endingPrompt    string

	exportFormat string
	exportFile   string
)

var endingCmd = &cobra.Command{
	Use:   "ending",
	Short: "Generate and export story endings",
}

var endingGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an ending for a session and lock it",
	Long: `Generate an ending for a session. The world and character must already
exist in the configured storage.

Examples:
  narraitor ending generate --session s1 --character c1 --world w1 --type story-complete
  narraitor ending generate --session s1 --character c1 --world w1 --type player-choice --tone bittersweet`,
	Args: cobra.NoArgs,
	RunE: runEndingGenerate,
}

var endingExportCmd = &cobra.Command{
	Use:   "export [session]",
	Short: "Export a session transcript as JSON or markdown",
	Long: `Export a session's segments and ending.

Examples:
  narraitor ending export s1
  narraitor ending export s1 --format markdown --out s1.md`,
	Args: cobra.ExactArgs(1),
	RunE: runEndingExport,
}

func init() {
	rootCmd.AddCommand(endingCmd)
	endingCmd.AddCommand(endingGenerateCmd, endingExportCmd)

	f := endingGenerateCmd.Flags()
	f.StringVar(&endingSession, "session", "", "Session ID")
	f.StringVar(&endingCharacter, "character", "", "Character ID")
	f.StringVar(&endingWorld, "world", "", "World ID")
	f.StringVar(&endingType, "type", string(engine.EndingStoryComplete), "Ending type: "+endingTypeList())
	f.StringVar(&endingTone, "tone", "", "Desired tone (optional)")
	f.StringVar(&endingPrompt, "prompt", "", "Extra instructions for the storyteller")
	for _, name := range []string{"session", "character", "world"} {
		_ = endingGenerateCmd.MarkFlagRequired(name)
	}

	endingExportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format: json or markdown")
	endingExportCmd.Flags().StringVar(&exportFile, "out", "", "Write to file instead of stdout")
}

func endingTypeList() string {
	names := make([]string, len(engine.EndingTypes))
	for i, t := range engine.EndingTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func runEndingGenerate(cmd *cobra.Command, args []string) error {
	et := engine.EndingType(endingType)
	if !et.Valid() {
		return fmt.Errorf("invalid ending type %q, must be one of: %s", endingType, endingTypeList())
	}
	tone := engine.EndingTone(endingTone)
	if tone != "" && !tone.Valid() {
		return fmt.Errorf("invalid tone %q", endingTone)
	}

	ctx := context.Background()
	o, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer o.Close()

	fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("→ Generating ending..."))
	ending, err := o.Narrative.GenerateEnding(ctx, et, narrative.EndingParams{
		SessionID:    endingSession,
		CharacterID:  endingCharacter,
		WorldID:      endingWorld,
		DesiredTone:  tone,
		CustomPrompt: endingPrompt,
	})
	if err != nil {
		return fmt.Errorf("ending generation failed: %w", err)
	}
	o.Narrative.SaveEndingToHistory(ctx)

	printEnding(cmd.OutOrStdout(), ending)
	return nil
}

func printEnding(w io.Writer, e *engine.StoryEnding) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Ending (%s, %s)", e.Type, e.Tone)))
	fmt.Fprintln(w)
	fmt.Fprintln(w, bodyStyle.Render(e.Epilogue))
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Legacy"))
	fmt.Fprintln(w, bodyStyle.Render(e.CharacterLegacy))
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("World impact"))
	fmt.Fprintln(w, bodyStyle.Render(e.WorldImpact))
	if len(e.Achievements) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render("Achievements"))
		for _, a := range e.Achievements {
			fmt.Fprintln(w, successStyle.Render("✓ "+a))
		}
	}
	if e.PlayTime != nil {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("Play time: %ds", *e.PlayTime)))
	}
	fmt.Fprintln(w)
}

func runEndingExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	o, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer o.Close()

	exp := narrative.BuildSessionExport(o.Narrative, args[0])
	if exportFile == "" {
		return narrative.ExportSession(exp, exportFormat, cmd.OutOrStdout())
	}

	file, err := os.Create(exportFile)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	if err := narrative.ExportSession(exp, exportFormat, file); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d segments to %s\n", exp.SegmentCount, exportFile)
	return nil
}
