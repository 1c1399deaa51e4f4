package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/kamir/gowxbot/internal/config"
	"github.com/kamir/gowxbot/internal/store"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage routing rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rules in evaluation order",
	Run:   runRulesList,
}

var (
	ruleFunction string
	rulePattern  string
	ruleReply    string
	ruleType     string
	ruleWhite    []string
	ruleBlack    []string
	ruleMention  bool
	ruleAI       bool
	ruleCheck    bool
	ruleLevel    int
	ruleModule   string
)

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a rule (appended after existing rules)",
	Run:   runRulesAdd,
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Activate a rule",
	Args:  cobra.ExactArgs(1),
	Run:   func(cmd *cobra.Command, args []string) { setRuleActive(args[0], true) },
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Deactivate a rule",
	Args:  cobra.ExactArgs(1),
	Run:   func(cmd *cobra.Command, args []string) { setRuleActive(args[0], false) },
}

var rulesRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	Run:   runRulesRm,
}

func init() {
	rulesAddCmd.Flags().StringVar(&ruleFunction, "function", "", "Handler key to invoke (empty = reply only)")
	rulesAddCmd.Flags().StringVar(&rulePattern, "pattern", "", "Regex matched against the display text")
	rulesAddCmd.Flags().StringVar(&ruleReply, "reply", "", "Synchronous reply text")
	rulesAddCmd.Flags().StringVar(&ruleType, "type", "all", "Content type filter (\"all\" or a code)")
	rulesAddCmd.Flags().StringSliceVar(&ruleWhite, "whitelist", []string{"all"}, "Allowed room ids (\"all\" = any)")
	rulesAddCmd.Flags().StringSliceVar(&ruleBlack, "blacklist", nil, "Excluded room ids")
	rulesAddCmd.Flags().BoolVar(&ruleMention, "mention", false, "Match only when the bot is mentioned")
	rulesAddCmd.Flags().BoolVar(&ruleAI, "ai", false, "Rewrite display text before matching")
	rulesAddCmd.Flags().BoolVar(&ruleCheck, "check", false, "Gate the handler on membership")
	rulesAddCmd.Flags().IntVar(&ruleLevel, "level", 0, "Required membership level")
	rulesAddCmd.Flags().StringVar(&ruleModule, "module", "", "Required membership module")

	rulesCmd.AddCommand(rulesListCmd, rulesAddCmd, rulesEnableCmd, rulesDisableCmd, rulesRmCmd)
	rootCmd.AddCommand(rulesCmd)
}

func openStore() *store.Store {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	st, err := store.Open(cfg.Paths.StoreDB)
	if err != nil {
		fmt.Printf("Failed to open store: %v\n", err)
		os.Exit(1)
	}
	return st
}

func runRulesList(cmd *cobra.Command, args []string) {
	st := openStore()
	defer st.Close()

	rules, err := st.ListRules()
	if err != nil {
		fmt.Printf("Failed to list rules: %v\n", err)
		os.Exit(1)
	}
	if len(rules) == 0 {
		fmt.Println("No rules configured.")
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	for _, r := range rules {
		state := green("on ")
		if !r.Active {
			state = red("off")
		}
		fn := r.FunctionKey
		if fn == "" {
			fn = "(reply only)"
		}
		fmt.Printf("%4d [%s] %-16s type=%-4s mention=%-5v pattern=%q", r.ID, state, fn, r.TypeFilter, r.RequiresMention, r.Pattern)
		if r.AIFlag {
			fmt.Printf("  🤖")
		}
		if r.CheckPermission {
			fmt.Printf("  🔒 level>=%d module=%s", r.RequiredLevel, r.Module)
		}
		fmt.Println()
	}
}

func runRulesAdd(cmd *cobra.Command, args []string) {
	if rulePattern == "" && ruleFunction == "" {
		fmt.Println("At least one of --pattern or --function is required.")
		os.Exit(1)
	}

	st := openStore()
	defer st.Close()

	id, err := st.InsertRule(&store.Rule{
		FunctionKey:     ruleFunction,
		Active:          true,
		Blacklist:       ruleBlack,
		Whitelist:       ruleWhite,
		TypeFilter:      ruleType,
		RequiresMention: ruleMention,
		AIFlag:          ruleAI,
		Pattern:         rulePattern,
		ReplyText:       ruleReply,
		CheckPermission: ruleCheck,
		RequiredLevel:   ruleLevel,
		Module:          ruleModule,
	})
	if err != nil {
		fmt.Printf("Failed to add rule: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Rule %d added\n", id)
}

func setRuleActive(arg string, active bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		fmt.Printf("Invalid rule id: %s\n", arg)
		os.Exit(1)
	}

	st := openStore()
	defer st.Close()

	if err := st.SetRuleActive(id, active); err != nil {
		fmt.Printf("Failed to update rule: %v\n", err)
		os.Exit(1)
	}
	if active {
		fmt.Printf("✅ Rule %d enabled\n", id)
	} else {
		fmt.Printf("✅ Rule %d disabled\n", id)
	}
}

func runRulesRm(cmd *cobra.Command, args []string) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Printf("Invalid rule id: %s\n", args[0])
		os.Exit(1)
	}

	st := openStore()
	defer st.Close()

	if err := st.DeleteRule(id); err != nil {
		fmt.Printf("Failed to delete rule: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Rule %d deleted\n", id)
}
