package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bravejig/bjig/internal/config"
	"github.com/bravejig/bjig/internal/core"
	"github.com/bravejig/bjig/internal/logging"
	"github.com/bravejig/bjig/internal/protocol"
	"github.com/bravejig/bjig/internal/transport"
)

// Connection flags
var (
	serialPort string
	baudRate   int
	cmdTimeout int
)

func init() {
	// Common flags for router-link commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&serialPort, "port", "", "Serial port of the BraveJIG router (e.g., /dev/ttyACM0)")
	rootCmd.PersistentFlags().IntVar(&baudRate, "baud", 0, "Baud rate (default from config, 38400)")
	rootCmd.PersistentFlags().IntVar(&cmdTimeout, "timeout", 0, "Command timeout in seconds (default from config, 5)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(statusCmd)
}

// openCommander resolves connection settings (flags over config file) and
// returns a connected commander. Callers must Disconnect.
func openCommander() (*core.Commander, error) {
	reg, err := config.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	port := serialPort
	baud := baudRate
	timeout := time.Duration(cmdTimeout) * time.Second
	if reg.Serial != nil {
		if port == "" {
			port = reg.Serial.Port
		}
		if baud == 0 {
			baud = reg.Serial.BaudRate
		}
		if cmdTimeout == 0 {
			timeout = time.Duration(reg.Serial.TimeoutSeconds) * time.Second
		}
	}
	if port == "" {
		return nil, fmt.Errorf("no serial port configured. Use --port, or 'bjig scan' to list candidates")
	}

	c := core.NewCommander(core.Config{
		Port:           port,
		BaudRate:       baud,
		CommandTimeout: timeout,
	}, logging.GetLogger())

	if err := c.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", port, err)
	}
	return c, nil
}

// withCommander runs fn against a connected commander and always closes the
// link afterwards.
func withCommander(fn func(c *core.Commander) error) error {
	c, err := openCommander()
	if err != nil {
		return err
	}
	defer c.Disconnect()
	return fn(c)
}

// parseDeviceID parses a 64-bit module ID given as hex, with or without an
// 0x prefix.
func parseDeviceID(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("module ID is required (16 hex digits)")
	}
	id, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid module ID %q: expected hex digits", s)
	}
	return id, nil
}

// parseSensorID parses a 16-bit sensor type ID given as hex.
func parseSensorID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	id, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid sensor ID %q: expected hex digits", s)
	}
	return uint16(id), nil
}

// scanCmd lists serial ports that may host a BraveJIG router
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List serial ports",
	Long: `List the serial ports available on this machine.

The BraveJIG router enumerates as a USB CDC serial device. On Linux it
typically appears as /dev/ttyACM0.`,
	Example: `  # List candidate ports
  bjig scan

  # Then talk to the router on one of them
  bjig router get-version --port /dev/ttyACM0`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	ports, err := transport.ListPorts()
	if err != nil {
		return fmt.Errorf("port enumeration failed: %w", err)
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the router is plugged in over USB")
		fmt.Println("  - Check that your user can access serial devices (dialout group on Linux)")
		return nil
	}

	fmt.Printf("Found %d port(s):\n\n", len(ports))
	for i, port := range ports {
		fmt.Printf("%d. %s\n", i+1, port.Name)
		if port.IsUSB {
			fmt.Printf("   USB:    %s:%s\n", port.VID, port.PID)
			if port.Product != "" {
				fmt.Printf("   Product: %s\n", port.Product)
			}
			if port.SerialNumber != "" {
				fmt.Printf("   Serial:  %s\n", port.SerialNumber)
			}
		}
		fmt.Println()
	}

	fmt.Println("Use 'bjig router get-version --port <port>' to probe a port")
	return nil
}

// Monitor command flags
var monitorJSON bool

// monitorCmd prints live uplink notifications
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print live sensor uplinks",
	Long: `Connect to the router and print every uplink notification as it
arrives, until interrupted with Ctrl-C.

Each line shows the module ID, sensor type, RSSI, sequence number, and the
raw sensor payload. Devices seen while monitoring are remembered in the
config file.`,
	Example: `  # Human-readable output
  bjig monitor --port /dev/ttyACM0

  # One JSON object per line, for scripting
  bjig monitor --port /dev/ttyACM0 --json`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorJSON, "json", false, "Emit one JSON object per uplink")
}

// monitorRecord is the JSON shape emitted by monitor --json
type monitorRecord struct {
	Time     string `json:"time"`
	DeviceID string `json:"device_id"`
	SensorID string `json:"sensor_id"`
	Sensor   string `json:"sensor"`
	RSSI     int8   `json:"rssi"`
	Order    uint16 `json:"order"`
	Data     string `json:"data,omitempty"`
}

func runMonitor(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	return withCommander(func(c *core.Commander) error {
		// Uplinks arrive on the transport's callback workers; the registry
		// is not safe for concurrent use.
		var regMu sync.Mutex
		c.SetUplinkHandler(func(n *protocol.UplinkNotification) {
			regMu.Lock()
			reg.UpdateDeviceLastSeen(n.DeviceID, n.SensorID)
			regMu.Unlock()

			ts := time.Unix(int64(n.UnixTime), 0).Format(time.RFC3339)
			if monitorJSON {
				rec := monitorRecord{
					Time:     ts,
					DeviceID: fmt.Sprintf("%016X", n.DeviceID),
					SensorID: fmt.Sprintf("%04X", n.SensorID),
					Sensor:   protocol.SensorTypeName(n.SensorID),
					RSSI:     n.RSSI,
					Order:    n.Order,
					Data:     hex.EncodeToString(n.Data),
				}
				line, err := json.Marshal(rec)
				if err != nil {
					return
				}
				fmt.Println(string(line))
				return
			}

			fmt.Printf("%s  %016X  %-20s  rssi %4d dBm  order %5d  %s\n",
				ts, n.DeviceID, protocol.SensorTypeName(n.SensorID),
				n.RSSI, n.Order, logging.HexDump(n.Data))
		})

		if !monitorJSON {
			fmt.Println("Monitoring uplinks. Press Ctrl-C to stop.")
			fmt.Println()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		if err := reg.Save(); err != nil {
			logging.Warn("Failed to save device registry", zap.Error(err))
		}

		if !monitorJSON {
			stats := c.Status().Stats
			fmt.Printf("\nReceived %d frame(s), %d byte(s).\n",
				stats.FramesReceived, stats.BytesReceived)
		}
		return nil
	})
}

// statusCmd shows the connection and error state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection status",
	Long: `Connect to the router, probe it with a keep-alive, and print the
connection snapshot plus a summary of any error notifications.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withCommander(func(c *core.Commander) error {
		ack, err := c.KeepAlive()
		if err != nil {
			return fmt.Errorf("keep-alive failed: %w", err)
		}

		st := c.Status()
		fmt.Printf("Port:       %s\n", st.Port)
		fmt.Printf("Connected:  %v\n", st.Connected)
		fmt.Printf("Keep-alive: acknowledged=%v\n", ack)
		fmt.Printf("Frames:     %d received, %d sent\n", st.Stats.FramesReceived, st.Stats.FramesSent)
		fmt.Printf("Bytes:      %d received, %d sent\n", st.Stats.BytesReceived, st.Stats.BytesSent)

		summary := c.ErrorSummary()
		if summary.Total == 0 {
			fmt.Println("Errors:     none")
			return nil
		}
		fmt.Printf("Errors:     %d\n", summary.Total)
		for reason, count := range summary.ByReason {
			fmt.Printf("  %s: %d\n", reason, count)
		}
		return nil
	})
}
