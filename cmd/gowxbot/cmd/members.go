package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kamir/gowxbot/internal/store"
	"github.com/spf13/cobra"
)

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Manage membership records",
}

var membersGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show a membership record (key = wxid or wxid#roomid)",
	Args:  cobra.ExactArgs(1),
	Run:   runMembersGet,
}

var (
	memberName    string
	memberLevel   int
	memberModules []string
	memberScore   float64
	memberBalance float64
)

var membersSetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Create or replace a membership record",
	Args:  cobra.ExactArgs(1),
	Run:   runMembersSet,
}

var membersRmCmd = &cobra.Command{
	Use:   "rm <key>",
	Short: "Delete a membership record",
	Args:  cobra.ExactArgs(1),
	Run:   runMembersRm,
}

var membersScoreCmd = &cobra.Command{
	Use:   "score <key> <delta>",
	Short: "Adjust a member's score",
	Args:  cobra.ExactArgs(2),
	Run:   runMembersScore,
}

func init() {
	membersSetCmd.Flags().StringVar(&memberName, "name", "", "Display name")
	membersSetCmd.Flags().IntVar(&memberLevel, "level", 1, "Authorization level")
	membersSetCmd.Flags().StringSliceVar(&memberModules, "modules", nil, "Granted modules (e.g. lesson,manage)")
	membersSetCmd.Flags().Float64Var(&memberScore, "score", 0, "Score entitlement")
	membersSetCmd.Flags().Float64Var(&memberBalance, "balance", 0, "Balance entitlement")

	membersCmd.AddCommand(membersGetCmd, membersSetCmd, membersRmCmd, membersScoreCmd)
	rootCmd.AddCommand(membersCmd)
}

func runMembersGet(cmd *cobra.Command, args []string) {
	st := openStore()
	defer st.Close()

	m, err := st.GetMember(args[0])
	if err != nil {
		fmt.Printf("Failed to get member: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		fmt.Printf("No membership record for %s\n", args[0])
		return
	}
	fmt.Printf("key:     %s\n", m.Key)
	fmt.Printf("name:    %s\n", m.Name)
	fmt.Printf("level:   %d\n", m.Level)
	fmt.Printf("modules: %s\n", strings.Join(m.Modules, ", "))
	fmt.Printf("score:   %.2f\n", m.Score)
	fmt.Printf("balance: %.2f\n", m.Balance)
}

func runMembersSet(cmd *cobra.Command, args []string) {
	st := openStore()
	defer st.Close()

	err := st.UpsertMember(&store.Member{
		Key:     args[0],
		Name:    memberName,
		Level:   memberLevel,
		Modules: memberModules,
		Score:   memberScore,
		Balance: memberBalance,
	})
	if err != nil {
		fmt.Printf("Failed to save member: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Member %s saved\n", args[0])
}

func runMembersRm(cmd *cobra.Command, args []string) {
	st := openStore()
	defer st.Close()

	if err := st.DeleteMember(args[0]); err != nil {
		fmt.Printf("Failed to delete member: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Member %s deleted\n", args[0])
}

func runMembersScore(cmd *cobra.Command, args []string) {
	delta, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Printf("Invalid delta: %s\n", args[1])
		os.Exit(1)
	}

	st := openStore()
	defer st.Close()

	if err := st.AdjustScore(args[0], delta); err != nil {
		fmt.Printf("Failed to adjust score: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Score of %s adjusted by %+.2f\n", args[0], delta)
}
