package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bravejig/bjig/internal/core"
	"github.com/bravejig/bjig/internal/firmware"
	"github.com/bravejig/bjig/internal/protocol"
	"github.com/bravejig/bjig/internal/ui"
)

// Router DFU flags
var (
	routerDfuFile string
	routerDfuYes  bool
)

var routerCmd = &cobra.Command{
	Use:   "router",
	Short: "Router management commands",
	Long: `Manage the BraveJIG router: start and stop LoRa operation, inspect
and edit the paired device table, switch scan modes, and update the router
firmware.`,
}

func init() {
	rootCmd.AddCommand(routerCmd)

	routerCmd.AddCommand(routerStartCmd)
	routerCmd.AddCommand(routerStopCmd)
	routerCmd.AddCommand(routerVersionCmd)
	routerCmd.AddCommand(routerDeviceIDCmd)
	routerCmd.AddCommand(routerScanModeCmd)
	routerCmd.AddCommand(routerSetScanModeCmd)
	routerCmd.AddCommand(routerRemoveDeviceCmd)
	routerCmd.AddCommand(routerKeepAliveCmd)
	routerCmd.AddCommand(routerDfuCmd)

	routerDfuCmd.Flags().StringVar(&routerDfuFile, "file", "", "Firmware image file (required)")
	routerDfuCmd.Flags().BoolVar(&routerDfuYes, "yes", false, "Skip the confirmation prompt")
	routerDfuCmd.MarkFlagRequired("file")
}

var routerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start router LoRa operation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAck("Router started", func(c *core.Commander) (bool, error) {
			return c.RouterStart()
		})
	},
}

var routerStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop router LoRa operation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAck("Router stopped", func(c *core.Commander) (bool, error) {
			return c.RouterStop()
		})
	},
}

// runAck runs a simple acknowledged router command and prints the outcome
func runAck(okMsg string, op func(c *core.Commander) (bool, error)) error {
	return withCommander(func(c *core.Commander) error {
		ack, err := op(c)
		if err != nil {
			return err
		}
		if !ack {
			return fmt.Errorf("router rejected the command")
		}
		fmt.Println("✓ " + okMsg)
		return nil
	})
}

var routerVersionCmd = &cobra.Command{
	Use:   "get-version",
	Short: "Read the router firmware version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCommander(func(c *core.Commander) error {
			v, err := c.RouterVersion()
			if err != nil {
				return err
			}
			fmt.Printf("Router firmware: %s\n", v)
			return nil
		})
	},
}

var routerDeviceIDCmd = &cobra.Command{
	Use:   "get-device-id [index]",
	Short: "Read paired module IDs",
	Long: `Read the router's paired device table.

Without an index, lists every paired module. With an index (0-99), reads
the single entry at that position.`,
	Example: `  # List every paired module
  bjig router get-device-id

  # Read the entry at index 3
  bjig router get-device-id 3`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGetDeviceID,
}

func runGetDeviceID(cmd *cobra.Command, args []string) error {
	return withCommander(func(c *core.Commander) error {
		if len(args) == 1 {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[0], err)
			}
			entry, err := c.DeviceID(index)
			if err != nil {
				return err
			}
			fmt.Printf("[%d] %016X\n", entry.Index, entry.DeviceID)
			return nil
		}

		entries, err := c.DeviceIDs()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No modules paired.")
			return nil
		}
		fmt.Printf("%d paired module(s):\n", len(entries))
		for _, entry := range entries {
			fmt.Printf("  [%d] %016X\n", entry.Index, entry.DeviceID)
		}
		return nil
	})
}

var routerScanModeCmd = &cobra.Command{
	Use:   "get-scan-mode",
	Short: "Read the LoRa scan mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCommander(func(c *core.Commander) error {
			mode, err := c.ScanMode()
			if err != nil {
				return err
			}
			fmt.Printf("Scan mode: %s\n", scanModeName(mode))
			return nil
		})
	},
}

var routerSetScanModeCmd = &cobra.Command{
	Use:   "set-scan-mode <mode>",
	Short: "Set the LoRa scan mode",
	Long: `Set the router's LoRa scan mode.

Mode 0 selects Long Range, mode 1 selects Legacy. The router must be
restarted (stop/start) for the new mode to take effect.`,
	Example: `  # Long Range
  bjig router set-scan-mode 0

  # Legacy
  bjig router set-scan-mode 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid mode %q: %w", args[0], err)
		}
		return runAck(fmt.Sprintf("Scan mode set to %s", scanModeName(byte(mode))),
			func(c *core.Commander) (bool, error) {
				return c.SetScanMode(mode)
			})
	},
}

func scanModeName(mode byte) string {
	switch mode {
	case protocol.ScanModeLongRange:
		return "Long Range"
	case protocol.ScanModeLegacy:
		return "Legacy"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", mode)
	}
}

var routerRemoveDeviceCmd = &cobra.Command{
	Use:   "remove-device-id [index]",
	Short: "Remove paired module IDs",
	Long: `Remove entries from the router's paired device table.

Without an index, removes every paired module. With an index (0-98),
removes the single entry at that position.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[0], err)
			}
			return runAck(fmt.Sprintf("Removed device at index %d", index),
				func(c *core.Commander) (bool, error) {
					return c.RemoveDeviceID(index)
				})
		}
		return runAck("Removed all paired devices", func(c *core.Commander) (bool, error) {
			return c.RemoveAllDeviceIDs()
		})
	},
}

var routerKeepAliveCmd = &cobra.Command{
	Use:   "keep-alive",
	Short: "Probe the router with a keep-alive",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAck("Router alive", func(c *core.Commander) (bool, error) {
			return c.KeepAlive()
		})
	},
}

var routerDfuCmd = &cobra.Command{
	Use:   "dfu",
	Short: "Update the router firmware",
	Long: `Transfer a new firmware image to the router.

The image is announced with a DFU initiation request, then streamed in
1024-byte chunks. The router verifies and commits the image after the last
chunk and restarts itself. Do not unplug the router during the transfer.`,
	Example: `  bjig router dfu --file router-v2.bin --port /dev/ttyACM0`,
	RunE:    runRouterDfu,
}

func runRouterDfu(cmd *cobra.Command, args []string) error {
	img, err := firmware.LoadRouter(routerDfuFile)
	if err != nil {
		return err
	}

	fmt.Println(ui.RenderCommandHeader(ui.HeaderConfig{
		Title:   "Router Firmware Update",
		Command: "bjig router dfu",
		Params: map[string]string{
			"File":   img.Path,
			"Size":   ui.FormatBytes(int64(img.Size())),
			"CRC32":  fmt.Sprintf("%08X", img.CRC32()),
			"Chunks": strconv.Itoa(firmware.RouterChunkCount(img.Size())),
		},
	}))
	fmt.Println()

	if !routerDfuYes && !ui.FirmwareUpdateConfirmation("BraveJIG router") {
		return nil
	}

	return withCommander(func(c *core.Commander) error {
		transfer := ui.NewTransfer("Transferring firmware...", "chunk",
			firmware.RouterChunkCount(img.Size()))
		start := time.Now()

		err := c.UpdateRouterFirmware(img, func(p core.RouterDfuProgress) {
			transfer.Update(p.ChunksCompleted, int64(p.BytesTransferred))
			fmt.Printf("\r%s", transfer.RenderLine())
		})
		fmt.Println()

		if err != nil {
			fmt.Println(ui.RenderFailure("Router firmware update failed", err, []string{
				"Check that the router is still connected and powered",
				"Retry the update; transfers cannot be resumed",
				"Verify the image file is a router firmware build",
			}))
			return err
		}

		fmt.Println(ui.RenderSuccess("Router firmware update complete", map[string]string{
			"File":     img.Path,
			"Size":     ui.FormatBytes(int64(img.Size())),
			"Duration": time.Since(start).Round(time.Second).String(),
		}))
		fmt.Println("The router restarts itself to activate the new image.")
		return nil
	})
}
