package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fystack/cloudcoach/advisor"
)

var (
	advisorFormat   string
	advisorFile     string
	advisorSelect   []string
	advisorSet      []string
	advisorDefaults bool
)

func init() {
	rootCmd.AddCommand(advisorCmd)
	advisorCmd.AddCommand(advisorListCmd, advisorDescribeCmd, advisorRecommendCmd)

	advisorCmd.PersistentFlags().StringVarP(&advisorFormat, "format", "f", "text", "Output format (text|json)")
	advisorCmd.PersistentFlags().StringVar(&advisorFile, "file", "", "Advisor definition YAML (instead of a built-in id)")

	advisorRecommendCmd.Flags().StringArrayVar(&advisorSelect, "select", nil, "Answer an option (option=value, repeatable)")
	advisorRecommendCmd.Flags().StringArrayVar(&advisorSet, "set", nil, "Set a numeric input (input=number, repeatable)")
	advisorRecommendCmd.Flags().BoolVar(&advisorDefaults, "defaults", false, "Answer unselected options with their first choice")
}

var advisorCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Recommend architecture choices from questionnaire answers",
}

var advisorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in advisors",
	Args:  cobra.NoArgs,
	RunE:  runAdvisorList,
}

var advisorDescribeCmd = &cobra.Command{
	Use:   "describe [id]",
	Short: "Show the options, inputs and categories of an advisor",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAdvisorDescribe,
}

var advisorRecommendCmd = &cobra.Command{
	Use:   "recommend [id]",
	Short: "Score answers and print the recommended category",
	Long: "Adds the weights of every selected option/choice pair, applies the\n" +
		"advisor's condition rules to the numeric inputs, and prints the highest\n" +
		"scoring category with its confidence and the full score breakdown.\n\n" +
		"Example:\n" +
		"  cloudcoach advisor recommend deployment-strategy \\\n" +
		"    --select downtime=zero --select risk=very_low --select cost=performance",
	Args: cobra.MaximumNArgs(1),
	RunE: runAdvisorRecommend,
}

// resolveAdvisor loads --file when given, otherwise the built-in named by
// the first argument. Built-ins are rebuilt so they log through the CLI logger.
func resolveAdvisor(args []string) (*advisor.Advisor, error) {
	if advisorFile != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("give either an advisor id or --file, not both")
		}
		return advisor.Load(advisorFile, advisor.WithLogger(logger))
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("advisor id required (see 'cloudcoach advisor list')")
	}

	builtin, err := advisor.Lookup(args[0])
	if err != nil {
		return nil, err
	}
	if logger == nil {
		return builtin, nil
	}
	return advisor.New(builtin.Definition(), advisor.WithLogger(logger))
}

type advisorSummary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Categories  []string `json:"categories"`
}

func runAdvisorList(cmd *cobra.Command, args []string) error {
	if err := checkFormat(advisorFormat); err != nil {
		return err
	}
	advisors, err := advisor.Builtin()
	if err != nil {
		return err
	}

	summaries := make([]advisorSummary, 0, len(advisors))
	for _, a := range advisors {
		summaries = append(summaries, advisorSummary{
			ID:          a.ID(),
			Title:       a.Title(),
			Description: a.Description(),
			Categories:  a.Categories(),
		})
	}

	out := cmd.OutOrStdout()
	if advisorFormat == "json" {
		return writeJSON(out, summaries)
	}

	width := 0
	for _, s := range summaries {
		width = max(width, len(s.ID))
	}
	for _, s := range summaries {
		fmt.Fprintf(out, "%-*s  %s (%s)\n", width, s.ID, s.Title, strings.Join(s.Categories, ", "))
	}
	return nil
}

func runAdvisorDescribe(cmd *cobra.Command, args []string) error {
	if err := checkFormat(advisorFormat); err != nil {
		return err
	}
	a, err := resolveAdvisor(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if advisorFormat == "json" {
		return writeJSON(out, a.Definition())
	}
	formatAdvisor(out, a)
	return nil
}

func runAdvisorRecommend(cmd *cobra.Command, args []string) error {
	if err := checkFormat(advisorFormat); err != nil {
		return err
	}
	a, err := resolveAdvisor(args)
	if err != nil {
		return err
	}

	selections, err := parseAssignments("select", advisorSelect)
	if err != nil {
		return err
	}
	values, err := parseNumbers("set", advisorSet)
	if err != nil {
		return err
	}
	if advisorDefaults {
		for option, value := range a.Defaults() {
			if _, ok := selections[option]; !ok {
				selections[option] = value
			}
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result := a.Recommend(ctx, advisor.Request{Selections: selections, Values: values})

	out := cmd.OutOrStdout()
	if advisorFormat == "json" {
		return writeJSON(out, result)
	}
	formatRecommendation(out, a, result)
	return nil
}

func formatAdvisor(w io.Writer, a *advisor.Advisor) {
	fmt.Fprintf(w, "%s (%s)\n", a.Title(), a.ID())
	if d := a.Description(); d != "" {
		fmt.Fprintf(w, "%s\n", d)
	}

	fmt.Fprintf(w, "\nCategories:\n")
	for _, name := range a.Categories() {
		c, _ := a.Category(name)
		if c.Description != "" {
			fmt.Fprintf(w, "  %s: %s\n", c.Name, c.Description)
		} else {
			fmt.Fprintf(w, "  %s\n", c.Name)
		}
	}

	fmt.Fprintf(w, "\nOptions:\n")
	for _, opt := range a.Options() {
		fmt.Fprintf(w, "  %s: %s\n", opt.ID, opt.Label)
		for _, c := range opt.Choices {
			fmt.Fprintf(w, "    %s=%s  %s\n", opt.ID, c.Value, c.Text)
		}
	}

	if inputs := a.Inputs(); len(inputs) > 0 {
		fmt.Fprintf(w, "\nInputs:\n")
		for _, in := range inputs {
			fmt.Fprintf(w, "  %s: %s [%g..%g, default %g]\n", in.ID, in.Label, in.Min, in.Max, in.Default)
		}
	}

	if conds := a.Conditions(); len(conds) > 0 {
		fmt.Fprintf(w, "\nConditions:\n")
		for _, c := range conds {
			fmt.Fprintf(w, "  %s: %s\n", c.ID, c.When)
		}
	}

	if levels := a.Levels(); len(levels) > 0 {
		fmt.Fprintf(w, "\nLevels (out of %d points):\n", a.MaxPoints())
		for _, l := range levels {
			fmt.Fprintf(w, "  %s: %g%%+\n", l.Name, l.Min)
		}
	}
}

func formatRecommendation(w io.Writer, a *advisor.Advisor, result advisor.Result) {
	rec := result.Recommendation
	fmt.Fprintf(w, "%s\n", a.Title())
	fmt.Fprintf(w, "Recommendation: %s (%.2f%% confidence)\n", rec.Category, rec.Confidence)
	if c, ok := a.Category(rec.Category); ok && c.Description != "" {
		fmt.Fprintf(w, "  %s\n", c.Description)
	}
	if len(result.Tied) > 0 {
		fmt.Fprintf(w, "  tie between %s\n", strings.Join(result.Tied, ", "))
	}

	ranked := rec.Ranked()
	width := 0
	for _, s := range ranked {
		width = max(width, len(s.Category))
	}
	fmt.Fprintf(w, "\nScores (total %d):\n", rec.Total)
	for _, s := range ranked {
		fmt.Fprintf(w, "  %-*s  %d\n", width, s.Category, s.Score)
	}

	if len(result.Matched) > 0 {
		fmt.Fprintf(w, "\nMatched conditions: %s\n", strings.Join(result.Matched, ", "))
	}

	if g := result.Grading; g != nil {
		fmt.Fprintf(w, "\nLevel: %s (%.2f%%, %d/%d points)\n", g.Level, g.Percent, g.Points, g.MaxPoints)
		for _, r := range g.Recommendations {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}

	for _, u := range result.Unknown {
		fmt.Fprintf(w, "warning: %s\n", u)
	}
	if result.ErrorMessage != "" {
		fmt.Fprintf(w, "error: %s\n", result.ErrorMessage)
	}
}
