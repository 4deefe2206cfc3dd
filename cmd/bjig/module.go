package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bravejig/bjig/internal/config"
	"github.com/bravejig/bjig/internal/core"
	"github.com/bravejig/bjig/internal/firmware"
	"github.com/bravejig/bjig/internal/logging"
	"github.com/bravejig/bjig/internal/module"
	"github.com/bravejig/bjig/internal/protocol"
	"github.com/bravejig/bjig/internal/ui"
)

// Module command flags
var (
	moduleID      string
	sensorID      string
	paramData     string
	sensorDfuFile string
	sensorDfuYes  bool
)

var moduleCmd = &cobra.Command{
	Use:   "module",
	Short: "Sensor module commands",
	Long: `Send commands to a paired sensor module through the router.

Every module command targets one module by its 64-bit ID (16 hex digits,
printed by 'bjig router get-device-id' and 'bjig monitor'). Commands that
address a specific sensor on the module take --sensor-id; the default
0000 targets the module main unit.`,
}

func init() {
	rootCmd.AddCommand(moduleCmd)

	moduleCmd.PersistentFlags().StringVar(&moduleID, "module-id", "", "Target module ID, 16 hex digits (required)")
	moduleCmd.PersistentFlags().StringVar(&sensorID, "sensor-id", "0000", "Target sensor type ID, 4 hex digits")
	moduleCmd.MarkPersistentFlagRequired("module-id")

	moduleCmd.AddCommand(instantUplinkCmd)
	moduleCmd.AddCommand(getParameterCmd)
	moduleCmd.AddCommand(setParameterCmd)
	moduleCmd.AddCommand(restartCmd)
	moduleCmd.AddCommand(sensorDfuCmd)

	setParameterCmd.Flags().StringVar(&paramData, "data", "", "Parameter blob as hex (required)")
	setParameterCmd.MarkFlagRequired("data")

	sensorDfuCmd.Flags().StringVar(&sensorDfuFile, "file", "", "Firmware image file (required)")
	sensorDfuCmd.Flags().BoolVar(&sensorDfuYes, "yes", false, "Skip the confirmation prompt")
	sensorDfuCmd.MarkFlagRequired("file")
}

// withClient parses the module target flags, connects, and runs fn
func withClient(fn func(cl *module.Client, deviceID uint64, sensor uint16) error) error {
	deviceID, err := parseDeviceID(moduleID)
	if err != nil {
		return err
	}
	sensor, err := parseSensorID(sensorID)
	if err != nil {
		return err
	}
	return withCommander(func(c *core.Commander) error {
		return fn(module.NewClient(c, logging.GetLogger()), deviceID, sensor)
	})
}

var instantUplinkCmd = &cobra.Command{
	Use:   "instant-uplink",
	Short: "Request an immediate sensor uplink",
	Long: `Ask a module to send one uplink immediately instead of waiting for
its uplink interval. The reading arrives as a normal uplink notification;
use 'bjig monitor' to see it.`,
	Example: `  bjig module instant-uplink --module-id 2468800203400004 --sensor-id 0121`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(cl *module.Client, deviceID uint64, sensor uint16) error {
			if err := cl.InstantUplink(deviceID, sensor); err != nil {
				return err
			}
			fmt.Println("✓ Instant uplink requested")
			return nil
		})
	},
}

var getParameterCmd = &cobra.Command{
	Use:   "get-parameter",
	Short: "Read a module's parameter blob",
	Long: `Read the parameter blob from a module's main unit.

The module answers with a parameter-information uplink, which can take
several seconds over LoRa. The blob is printed through the parameter codec
registered for the module's sensor type (hex by default).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(cl *module.Client, deviceID uint64, sensor uint16) error {
			blob, err := cl.GetParameter(deviceID)
			if err != nil {
				return err
			}
			text, err := module.CodecFor(sensor).Decode(blob)
			if err != nil {
				return err
			}
			fmt.Printf("Parameter (%d bytes):\n%s\n", len(blob), text)
			return nil
		})
	},
}

var setParameterCmd = &cobra.Command{
	Use:   "set-parameter",
	Short: "Write a module's parameter blob",
	Long: `Write a parameter blob to a module's main unit.

The blob is given with --data and parsed through the parameter codec
registered for the module's sensor type (hex by default). The module
applies the new parameters on its next downlink window.`,
	Example: `  bjig module set-parameter --module-id 2468800203400004 --data "02 00 00 00"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(cl *module.Client, deviceID uint64, sensor uint16) error {
			blob, err := module.CodecFor(sensor).Encode(paramData)
			if err != nil {
				return err
			}
			if err := cl.SetParameter(deviceID, blob); err != nil {
				return err
			}
			fmt.Printf("✓ Parameter written (%d bytes)\n", len(blob))
			return nil
		})
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart a module",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(cl *module.Client, deviceID uint64, sensor uint16) error {
			if err := cl.Restart(deviceID); err != nil {
				return err
			}
			fmt.Println("✓ Restart requested")
			return nil
		})
	},
}

var sensorDfuCmd = &cobra.Command{
	Use:   "sensor-dfu",
	Short: "Update a module's firmware",
	Long: `Transfer a new firmware image to a sensor module through the router.

The image is split into DFU blocks and sent as a sequence of downlink
commands, each acknowledged by the module before the next is sent. A
transfer over LoRa takes several minutes; the module reboots into the new
image when it completes and is unreachable for 30-60 seconds afterwards.`,
	Example: `  bjig module sensor-dfu --module-id 2468800203400004 --sensor-id 0121 --file illuminance-v2.bin`,
	RunE:    runSensorDfu,
}

func runSensorDfu(cmd *cobra.Command, args []string) error {
	img, err := firmware.LoadSensor(sensorDfuFile)
	if err != nil {
		return err
	}
	plan := firmware.PlanSensor(img.Data)

	deviceID, err := parseDeviceID(moduleID)
	if err != nil {
		return err
	}
	sensor, err := parseSensorID(sensorID)
	if err != nil {
		return err
	}

	fmt.Println(ui.RenderCommandHeader(ui.HeaderConfig{
		Title:   "Module Firmware Update",
		Command: "bjig module sensor-dfu",
		Params: map[string]string{
			"Module": fmt.Sprintf("%016X", deviceID),
			"Sensor": protocol.SensorTypeName(sensor),
			"File":   img.Path,
			"Size":   ui.FormatBytes(int64(len(plan.Body))),
			"CRC32":  fmt.Sprintf("%08X", plan.CRC),
			"Blocks": strconv.Itoa(plan.TotalBlocks),
		},
	}))
	fmt.Println()

	if !sensorDfuYes && !ui.FirmwareUpdateConfirmation("sensor module") {
		return nil
	}

	return withCommander(func(c *core.Commander) error {
		cl := module.NewClient(c, logging.GetLogger())
		transfer := ui.NewTransfer("Transferring firmware...", "block", plan.TotalBlocks)
		start := time.Now()

		err := cl.UpdateFirmware(deviceID, sensor, plan, func(p module.DfuProgress) {
			transfer.Update(p.CurrentBlock, 0)
			fmt.Printf("\r%s", transfer.RenderLine())
		})
		fmt.Println()

		if err != nil {
			fmt.Println(ui.RenderFailure("Module firmware update failed", err, []string{
				"Check that the module is powered and in LoRa range",
				"Retry the update; transfers cannot be resumed",
				"Verify the image file matches the module's sensor type",
			}))
			return err
		}

		// Remember the module in the device registry
		if reg, regErr := config.LoadRegistry(); regErr == nil {
			reg.UpdateDeviceLastSeen(deviceID, sensor)
			_ = reg.Save()
		}

		fmt.Println(ui.RenderSuccess("Module firmware update complete", map[string]string{
			"Module":   fmt.Sprintf("%016X", deviceID),
			"Blocks":   strconv.Itoa(plan.TotalBlocks),
			"Duration": time.Since(start).Round(time.Second).String(),
		}))
		fmt.Println("The module reboots into the new image; allow 30-60 seconds before querying it.")
		return nil
	})
}
