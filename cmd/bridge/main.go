package main

import (
	"fmt"
	"log"
	"os"

	"github.com/Maphikza/ln-settlement-bridge/internal/config"
	"github.com/Maphikza/ln-settlement-bridge/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "ln-bridge",
	Short: "Lightning settlement bridge",
	Long:  `Custodial lightning wallets with withdraw links, paywalls and an LndHub-compatible API.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(walletCmd)
}

func initConfig() {
	err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	err = viper.ReadInConfig()
	if err != nil {
		log.Printf("Error reading viper config: %s", err.Error())
	}

	if err := logger.Init(viper.GetString("log_file"), viper.GetString("log_level")); err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
