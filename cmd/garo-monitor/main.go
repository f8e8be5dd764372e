package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"garo-monitor/config"
	"garo-monitor/internal/api"
	"garo-monitor/internal/auth"
	"garo-monitor/internal/collector"
	"garo-monitor/internal/garo"
	"garo-monitor/internal/mqtt"
	"garo-monitor/internal/station"
	"garo-monitor/internal/storage"

	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "garo-monitor",
		Short: "Garo charging station monitor",
		Long:  "A tool to monitor Garo EV charging stations through the vendor cloud API",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(testCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient(cfg *config.Config) *garo.Client {
	creds := auth.NewCognitoProvider(auth.CognitoConfig{
		Username: cfg.Auth.Username,
		Password: cfg.Auth.Password,
		ClientID: cfg.Auth.ClientID,
		Region:   cfg.Auth.Region,
		Timeout:  cfg.API.Timeout,
	})
	return garo.NewClient(cfg.API.BaseURL, creds, cfg.API.Timeout)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the monitoring service",
		Long:  "Start the poller, API server, and MQTT publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			client := newClient(cfg)

			db, err := storage.NewDatabase(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			log.Printf("Database opened at %s", cfg.Database.Path)

			publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
				Broker:      cfg.MQTT.Broker,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				Enabled:     cfg.MQTT.Enabled,
			})
			if err != nil {
				log.Printf("Warning: MQTT connection failed: %v", err)
			} else if cfg.MQTT.Enabled {
				log.Printf("MQTT connected to %s", cfg.MQTT.Broker)
			}

			coll := collector.NewCollector(collector.Config{
				API:       client,
				Store:     db,
				Publisher: publisher,
				Interval:  cfg.Poller.Interval,
				Enabled:   cfg.Poller.Enabled,
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				if err := coll.Start(ctx); err != nil {
					log.Printf("Collector error: %v", err)
				}
			}()

			// Discovery needs station metadata, so it waits for the first
			// completed cycle.
			if cfg.MQTT.Enabled && cfg.MQTT.Discovery && publisher != nil {
				go func() {
					ticker := time.NewTicker(5 * time.Second)
					defer ticker.Stop()
					for {
						select {
						case <-ctx.Done():
							return
						case <-ticker.C:
						}
						snapshots := coll.Latest()
						if len(snapshots) == 0 {
							continue
						}
						for _, snap := range snapshots {
							if err := publisher.PublishDiscovery(snap); err != nil {
								log.Printf("Discovery publish failed: %v", err)
							}
						}
						return
					}
				}()
			}

			if cfg.Server.Enabled {
				server := api.NewServer(api.ServerConfig{
					Port:      cfg.Server.Port,
					Collector: coll,
					Gateway:   station.NewCommitGateway(client),
					Database:  db,
				})

				go func() {
					if err := server.Start(); err != nil {
						log.Printf("API server error: %v", err)
					}
				}()
			}

			log.Println("Garo Monitor started. Press Ctrl+C to stop.")

			<-sigChan
			log.Println("Shutting down...")
			cancel()
			if publisher != nil {
				publisher.Close()
			}
			return db.Close()
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one poll cycle and print the snapshots",
		Long:  "Poll every station once and print the resulting snapshots as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			coll := collector.NewCollector(collector.Config{
				API:      newClient(cfg),
				Interval: cfg.Poller.Interval,
				Enabled:  true,
			})

			snapshots, err := coll.CollectOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			output, _ := json.MarshalIndent(snapshots, "", "  ")
			fmt.Println(string(output))
			return nil
		},
	}
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test cloud API credentials",
		Long:  "Authenticate against the cloud and list the account's stations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			fmt.Printf("Testing connection to %s...\n", cfg.API.BaseURL)

			client := newClient(cfg)
			list, err := client.ListStations(cmd.Context())
			if err != nil {
				fmt.Printf("Connection FAILED: %v\n", err)
				return err
			}

			fmt.Println("Connection SUCCESS!")
			fmt.Printf("\nStations (%d):\n", len(list.Items))
			for _, item := range list.Items {
				st := station.NewStation(item)
				kind := "charging station"
				if item.LoadInterface {
					kind = "load interface"
				}
				fmt.Printf("  %s (%s)\n", st.Name, kind)
				fmt.Printf("    ID:         %s\n", st.ID)
				fmt.Printf("    Serial:     %s\n", st.SerialNumber)
				fmt.Printf("    Model:      %s %s\n", st.VendorName, st.Model)
				fmt.Printf("    Firmware:   %s\n", st.FirmwareVersion)
				fmt.Printf("    Phases:     %d\n", st.Phases)
				fmt.Printf("    Connection: %s\n", st.Connection)
			}
			return nil
		},
	}
}
