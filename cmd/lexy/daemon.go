package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexyapp/lexy/internal/connectivity"
	"github.com/lexyapp/lexy/internal/daemon"
	"github.com/lexyapp/lexy/internal/dashboard"
	"github.com/lexyapp/lexy/internal/remote"
	"github.com/lexyapp/lexy/internal/syncq"
)

const probeInterval = 30 * time.Second

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync agent",
	Long: `Run the background sync agent.

The daemon watches the catalog drop directory and installs new generations
into the cache, probes connectivity and replays the sync queue on every
offline-to-online transition, and (with --dashboard) serves a local
WebSocket status feed.

Example usage:
  lexy daemon
  lexy daemon --dashboard --port 7312`,
	Run: func(cmd *cobra.Command, args []string) {
		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		port, _ := cmd.Flags().GetInt("port")

		logger := newLogger("[daemon] ")

		st := openStore()
		defer st.Close()

		var dash *dashboard.Server
		if withDashboard {
			if port == 0 {
				port = cfg.DashboardPort
			}
			dash = dashboard.NewServer(&dashboard.Config{
				Port:   port,
				Logger: newLogger("[dashboard] "),
			})
			if err := dash.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer dash.Stop()
			fmt.Printf("Dashboard: ws://localhost:%d/ws\n", port)
		}

		probeAddr := probeAddrFor(cfg.BackendURL)

		// Connectivity transitions come from a periodic reachability probe
		// of the backend host. --offline pins the signal off.
		transitions := make(chan bool, 1)
		initial := !cfg.Offline && connectivity.Probe(probeAddr, 5*time.Second)

		client := remote.NewClient(cfg.BackendURL, cfg.AuthToken)

		var monitor *connectivity.Monitor
		qcfg := syncq.DefaultConfig()
		qcfg.Logger = newLogger("[syncq] ")
		queue := syncq.New(st, client, qcfg)
		monitor = connectivity.New(initial, transitions, func() {
			logger.Println("Back online, scheduling replay")
			if dash != nil {
				dash.BroadcastJSON(dashboard.MessageTypeConnectivity,
					dashboard.ConnectivityData{Online: true})
			}
			queue.ScheduleReplay()
		})
		qcfg.Online = monitor.Online

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if !cfg.Offline {
			go probeLoop(ctx, probeAddr, transitions)
		}

		d := daemon.New(st, queue, monitor, dash, &daemon.Config{
			CatalogDir:       cfg.CatalogDir,
			DebounceInterval: 2 * time.Second,
			ReplayInterval:   5 * time.Minute,
			Logger:           logger,
		})

		fmt.Printf("Sync agent running (online=%v). Press Ctrl+C to stop.\n", initial)

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Sync agent stopped")
	},
}

// probeAddrFor derives a dialable host:port from the backend URL.
func probeAddrFor(backendURL string) string {
	u, err := url.Parse(backendURL)
	if err != nil || u.Host == "" {
		return "api.lexy.app:443"
	}
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "http" {
		return u.Host + ":80"
	}
	return u.Host + ":443"
}

// probeLoop feeds reachability transitions to the connectivity monitor.
func probeLoop(ctx context.Context, addr string, transitions chan<- bool) {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			online := connectivity.Probe(addr, 5*time.Second)
			select {
			case transitions <- online:
			case <-ctx.Done():
				return
			}
		}
	}
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "also serve the WebSocket status dashboard")
	daemonCmd.Flags().IntP("port", "p", 0, "dashboard port (default from config)")

	rootCmd.AddCommand(daemonCmd)
}
