package cmd

import (
	"fmt"
	"os"

	"github.com/kamir/gowxbot/internal/config"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and show the device pairing code",
	Run:   runOnboard,
}

var onboardForce bool

func init() {
	onboardCmd.Flags().BoolVarP(&onboardForce, "force", "f", false, "Overwrite existing config.json")
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(cmd *cobra.Command, args []string) {
	printHeader("🚀 GoWxBot Onboard")
	fmt.Println("Initializing GoWxBot...")

	path, _ := config.ConfigPath()

	// If config already exists, do not overwrite unless -f/--force is set.
	if _, err := os.Stat(path); err == nil && !onboardForce {
		fmt.Printf("Config already exists at: %s\n", path)
		fmt.Println("Use --force (-f) to overwrite.")
		return
	}

	cfg := config.DefaultConfig()
	if err := config.Save(cfg); err != nil {
		fmt.Printf("Error writing config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Config created at: %s\n", path)

	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		fmt.Printf("Error creating data dir: %v\n", err)
	}

	// Render the gateway's device-login page as a terminal QR so the
	// operator can pair the WeChat device by scanning it.
	loginURL := cfg.Gateway.BaseURL + "login_250514.html"
	if qr, err := qrcode.New(loginURL, qrcode.Medium); err == nil {
		fmt.Println("\nScan with WeChat to pair the device:")
		fmt.Println(qr.ToSmallString(false))
	}

	fmt.Println("Next steps:")
	fmt.Println("1. Edit config.json to set the gateway base URL and token.")
	fmt.Println("2. Run 'gowxbot rules add --pattern \"^ping$\" --reply pong' to test routing.")
	fmt.Println("3. Run 'gowxbot serve' to start the webhook.")
}
