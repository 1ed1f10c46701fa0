package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fystack/cloudcoach/policy"
)

var (
	policyFile     string
	policyFormat   string
	policyAction   string
	policyResource string
	policyContext  []string
	policyTrace    bool
)

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyEvaluateCmd, policyAnalyzeCmd, policyWatchCmd)

	policyCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "Path to policy document, JSON or YAML (required)")
	policyCmd.PersistentFlags().StringVarP(&policyFormat, "format", "f", "text", "Output format (text|json)")
	_ = policyCmd.MarkPersistentFlagRequired("policy")

	for _, cmd := range []*cobra.Command{policyEvaluateCmd, policyWatchCmd} {
		cmd.Flags().StringVar(&policyAction, "action", "", "Action to test, e.g. s3:GetObject (required)")
		cmd.Flags().StringVar(&policyResource, "resource", "", "Resource to test, e.g. arn:aws:s3:::bucket/key (required)")
		cmd.Flags().StringArrayVar(&policyContext, "context", nil, "Request context (key=value, repeatable)")
		cmd.Flags().BoolVar(&policyTrace, "trace", false, "Show how every statement was judged")
		_ = cmd.MarkFlagRequired("action")
		_ = cmd.MarkFlagRequired("resource")
	}
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Evaluate and analyze identity policy documents",
}

var policyEvaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Decide whether a document allows a request",
	Long: "Evaluates a request against every statement of a policy document.\n" +
		"An applying Deny wins, otherwise an applying Allow, otherwise the\n" +
		"request is implicitly denied.",
	Args: cobra.NoArgs,
	RunE: runPolicyEvaluate,
}

var policyAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarize a document and flag overly broad statements",
	Args:  cobra.NoArgs,
	RunE:  runPolicyAnalyze,
}

var policyWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-evaluate a request whenever the policy file changes",
	Args:  cobra.NoArgs,
	RunE:  runPolicyWatch,
}

func policyRequest() (policy.Request, error) {
	ctx, err := parseAssignments("context", policyContext)
	if err != nil {
		return policy.Request{}, err
	}
	return policy.Request{Action: policyAction, Resource: policyResource, Context: ctx}, nil
}

func engineOptions() []policy.EngineOption {
	opts := []policy.EngineOption{policy.WithLogger(logger)}
	if policyTrace {
		opts = append(opts, policy.WithTrace())
	}
	return opts
}

func runPolicyEvaluate(cmd *cobra.Command, args []string) error {
	if err := checkFormat(policyFormat); err != nil {
		return err
	}
	req, err := policyRequest()
	if err != nil {
		return err
	}
	engine, err := policy.LoadEngine(policyFile, engineOptions()...)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return writeDecision(cmd.OutOrStdout(), engine.Evaluate(ctx, req))
}

func runPolicyAnalyze(cmd *cobra.Command, args []string) error {
	if err := checkFormat(policyFormat); err != nil {
		return err
	}
	doc, err := policy.LoadDocument(policyFile)
	if err != nil {
		return err
	}

	analysis := policy.Analyze(doc)
	out := cmd.OutOrStdout()
	if policyFormat == "json" {
		return writeJSON(out, analysis)
	}
	formatAnalysis(out, analysis)
	return nil
}

func runPolicyWatch(cmd *cobra.Command, args []string) error {
	if err := checkFormat(policyFormat); err != nil {
		return err
	}
	req, err := policyRequest()
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	evaluate := func() {
		engine, err := policy.LoadEngine(policyFile, engineOptions()...)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "reload failed: %v\n", err)
			return
		}
		if err := writeDecision(out, engine.Evaluate(ctx, req)); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "write decision: %v\n", err)
		}
	}

	w, err := newFileWatcher(policyFile, evaluate)
	if err != nil {
		return err
	}
	w.logger = logger

	evaluate()
	return w.Run(ctx)
}

func writeDecision(w io.Writer, result policy.Result) error {
	if policyFormat == "json" {
		return writeJSON(w, result)
	}
	formatDecision(w, result)
	return nil
}

func formatDecision(w io.Writer, result policy.Result) {
	decision := "DENY"
	if result.Allowed {
		decision = "ALLOW"
	}
	fmt.Fprintf(w, "%s: %s", decision, result.Reason)
	if result.MatchedStatement != nil {
		fmt.Fprintf(w, " (statement %d", *result.MatchedStatement)
		if result.Sid != "" {
			fmt.Fprintf(w, ", %s", result.Sid)
		}
		fmt.Fprint(w, ")")
	}
	fmt.Fprintf(w, "\nevaluated %d statement(s)\n", result.Evaluated)

	for _, step := range result.Trace {
		label := fmt.Sprintf("#%d", step.Index)
		if step.Sid != "" {
			label += " " + step.Sid
		}
		fmt.Fprintf(w, "  %s [%s] action=%t resource=%t conditions=%t: %s\n",
			label, step.Effect, step.ActionMatch, step.ResourceMatch, step.ConditionsMet, step.Note)
	}
}

func formatAnalysis(w io.Writer, a policy.Analysis) {
	if a.Version != "" {
		fmt.Fprintf(w, "Version: %s\n", a.Version)
	}
	fmt.Fprintf(w, "Statements: %d (%d allow, %d deny)\n", a.Statements, a.AllowStatements, a.DenyStatements)
	fmt.Fprintf(w, "Actions: %s\n", strings.Join(a.Actions, ", "))
	fmt.Fprintf(w, "Resources: %s\n", strings.Join(a.Resources, ", "))

	if len(a.Issues) > 0 {
		fmt.Fprintf(w, "\nIssues:\n")
		for _, issue := range a.Issues {
			fmt.Fprintf(w, "  statement %d: %s\n", issue.Statement, issue.Message)
		}
	}
	if len(a.Recommendations) > 0 {
		fmt.Fprintf(w, "\nRecommendations:\n")
		for _, r := range a.Recommendations {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}
}
