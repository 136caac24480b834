package config_test

import (
	"fmt"
	"time"

	"github.com/huddlenotify/huddlenotify/internal/config"
)

// Example of creating a default configuration
func ExampleDefault() {
	cfg := config.Default()
	fmt.Println("Backstop Interval:", cfg.Watcher.BackstopInterval)
	fmt.Println("DevTools URL:", cfg.Browser.DevToolsURL)
	// Output:
	// Backstop Interval: 30s
	// DevTools URL: http://127.0.0.1:9222
}

// Example of setting the backstop interval with validation
func ExampleConfig_SetBackstopInterval() {
	cfg := config.Default()

	// Valid interval
	if err := cfg.SetBackstopInterval(45 * time.Second); err != nil {
		fmt.Println("Error:", err)
	} else {
		fmt.Println("Backstop interval set to:", cfg.Watcher.BackstopInterval)
	}

	// Invalid interval (too low)
	if err := cfg.SetBackstopInterval(500 * time.Millisecond); err != nil {
		fmt.Println("Error:", err)
	}

	// Output:
	// Backstop interval set to: 45s
	// Error: backstop interval cannot be less than 1s
}

// Example of validating configuration
func ExampleConfig_Validate() {
	cfg := config.Default()

	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid config:", err)
	} else {
		fmt.Println("Configuration is valid")
	}

	// Output:
	// Configuration is valid
}
