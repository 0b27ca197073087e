package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/climate-alerts/internal/credential"
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage secrets kept in the OS keyring",
}

var setWeatherKeyCmd = &cobra.Command{
	Use:   "set-weather-key",
	Short: "Store the weather provider API key (read from stdin)",
	RunE:  runSetWeatherKey,
}

var deleteWeatherKeyCmd = &cobra.Command{
	Use:   "delete-weather-key",
	Short: "Remove the stored weather provider API key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := credential.NewStore().Delete(credential.WeatherAPIKey); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Weather API key removed")
		return nil
	},
}

func init() {
	credentialCmd.AddCommand(setWeatherKeyCmd)
	credentialCmd.AddCommand(deleteWeatherKeyCmd)
}

func runSetWeatherKey(cmd *cobra.Command, _ []string) error {
	fmt.Fprint(cmd.ErrOrStderr(), "Weather API key: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return fmt.Errorf("empty key")
	}
	if err := credential.NewStore().Set(credential.WeatherAPIKey, key); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Weather API key stored")
	return nil
}
