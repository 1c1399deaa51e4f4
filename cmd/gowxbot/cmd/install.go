package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install gowxbot to /usr/local/bin",
	Run:   runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) {
	printHeader("📦 GoWxBot Install")

	exe, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to resolve executable: %v\n", err)
		return
	}

	targetPath := filepath.Join("/usr/local/bin", "gowxbot")
	if err := installBinary(exe, targetPath); err != nil {
		fmt.Printf("Install failed (try with sudo): %v\n", err)
		return
	}
	fmt.Printf("Installed to %s\n", targetPath)
}

// installBinary copies the running executable to dst with the
// executable bit set.
func installBinary(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o755); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}
