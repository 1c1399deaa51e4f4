package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/kamir/gowxbot/internal/store"
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage scheduled tasks",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open scheduled tasks",
	Run:   runTasksList,
}

var (
	taskCron   string
	taskArgs   string
	taskOneOff bool
)

var tasksAddCmd = &cobra.Command{
	Use:   "add <function>",
	Short: "Schedule a handler on a cron expression",
	Args:  cobra.ExactArgs(1),
	Run:   runTasksAdd,
}

var tasksRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a scheduled task",
	Args:  cobra.ExactArgs(1),
	Run:   runTasksRm,
}

func init() {
	tasksAddCmd.Flags().StringVar(&taskCron, "cron", "", "Cron expression (required)")
	tasksAddCmd.Flags().StringVar(&taskArgs, "args", "", "JSON args passed to the handler")
	tasksAddCmd.Flags().BoolVar(&taskOneOff, "once", false, "Consume after the first firing")
	tasksAddCmd.MarkFlagRequired("cron")

	tasksCmd.AddCommand(tasksListCmd, tasksAddCmd, tasksRmCmd)
	rootCmd.AddCommand(tasksCmd)
}

func runTasksList(cmd *cobra.Command, args []string) {
	st := openStore()
	defer st.Close()

	open, err := st.ListOpenTasks()
	if err != nil {
		fmt.Printf("Failed to list tasks: %v\n", err)
		os.Exit(1)
	}
	if len(open) == 0 {
		fmt.Println("No scheduled tasks.")
		return
	}
	for _, t := range open {
		last := "never"
		if t.LastFiredAt != nil {
			last = t.LastFiredAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%4d %-16s cron=%q once=%-5v last=%s\n", t.ID, t.FunctionKey, t.CronExpr, t.OneOff, last)
	}
}

func runTasksAdd(cmd *cobra.Command, args []string) {
	st := openStore()
	defer st.Close()

	id, err := st.InsertScheduledTask(&store.ScheduledTask{
		FunctionKey: args[0],
		CronExpr:    taskCron,
		Args:        taskArgs,
		OneOff:      taskOneOff,
	})
	if err != nil {
		fmt.Printf("Failed to add task: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Task %d scheduled\n", id)
}

func runTasksRm(cmd *cobra.Command, args []string) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Printf("Invalid task id: %s\n", args[0])
		os.Exit(1)
	}

	st := openStore()
	defer st.Close()

	if err := st.DeleteScheduledTask(id); err != nil {
		fmt.Printf("Failed to delete task: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Task %d deleted\n", id)
}
