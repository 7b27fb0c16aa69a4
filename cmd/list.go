/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serial-exchange"
	"github.com/allbin/go-serial-exchange/internal/tui/colors"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available serial ports",
	Long: `List all available serial ports on the system.

This command scans for communication-capable serial devices including:
- USB serial adapters (ttyUSB*)
- USB CDC/ACM devices (ttyACM*)
- Standard serial ports (ttyS*)
- ARM/Raspberry Pi ports (ttyAMA*)
- And other platform-specific serial devices

Virtual terminals and pseudo-terminals are excluded from the listing.
Devices of registered drivers are listed as scheme://name, e.g. the
devices attached with --simulate.`,
	Run: func(cmd *cobra.Command, args []string) {
		ports, err := serial.ListPorts()
		if err != nil {
			exitf("Error listing ports: %v", err)
		}

		if len(ports) == 0 {
			fmt.Println("No serial ports found")
			return
		}

		filterType, _ := cmd.Flags().GetString("filter")
		tableFormat, _ := cmd.Flags().GetBool("table")
		jsonOut, _ := cmd.Flags().GetBool("json")

		// Filter ports if requested
		filteredPorts := filterPorts(ports, filterType)

		if len(filteredPorts) == 0 {
			if filterType != "" {
				fmt.Printf("No serial ports found matching filter: %s\n", filterType)
			} else {
				fmt.Println("No serial ports found")
			}
			return
		}

		switch {
		case jsonOut:
			if err := printJSON(os.Stdout, portInfos(filteredPorts)); err != nil {
				exitf("%v", err)
			}
		case tableFormat:
			renderTable(filteredPorts)
		default:
			renderSimple(filteredPorts)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("filter", "f", "", "Filter by port type: usb, standard, arm, simulated, all")
	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
	listCmd.Flags().Bool("json", false, "Print port information as JSON")
}

// filterPorts filters the port list based on the specified filter type
func filterPorts(ports []string, filterType string) []string {
	if filterType == "" || filterType == "all" {
		return ports
	}

	var filtered []string
	for _, port := range ports {
		info, err := serial.GetPortInfo(port)
		if err != nil {
			continue
		}

		name := strings.ToLower(info.Name)
		switch strings.ToLower(filterType) {
		case "simulated":
			if strings.HasPrefix(port, serial.SimulatedScheme+"://") {
				filtered = append(filtered, port)
			}
		case "usb":
			if isDriverPort(port) {
				continue
			}
			if strings.HasPrefix(name, "ttyusb") || strings.HasPrefix(name, "ttyacm") {
				filtered = append(filtered, port)
			}
		case "standard":
			if isDriverPort(port) {
				continue
			}
			if strings.HasPrefix(name, "ttys") {
				filtered = append(filtered, port)
			}
		case "arm":
			if isDriverPort(port) {
				continue
			}
			if strings.HasPrefix(name, "ttyama") {
				filtered = append(filtered, port)
			}
		}
	}
	return filtered
}

// renderTable renders the port list in a styled static table format
func renderTable(ports []string) {
	fmt.Printf("Found %d serial port(s):\n\n", len(ports))

	// Define column widths
	portWidth := 24
	typeWidth := 20
	descWidth := 30

	// Create styles
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(colors.Mauve).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(colors.Surface2).
		PaddingBottom(1)

	cellStyle := lipgloss.NewStyle().
		PaddingRight(2)

	// Print header
	header := fmt.Sprintf("%-*s %-*s %-*s",
		portWidth, "Port",
		typeWidth, "Type",
		descWidth, "Description")
	fmt.Println(headerStyle.Render(header))

	// Print rows
	for _, port := range ports {
		info, err := serial.GetPortInfo(port)
		if err != nil {
			row := fmt.Sprintf("%-*s %-*s %-*s",
				portWidth, port,
				typeWidth, "Unknown",
				descWidth, fmt.Sprintf("Error: %v", err))
			fmt.Println(cellStyle.Render(row))
			continue
		}

		row := fmt.Sprintf("%-*s %-*s %-*s",
			portWidth, displayName(info),
			typeWidth, getPortType(info),
			descWidth, info.Description)
		fmt.Println(cellStyle.Render(row))
	}
}

// renderSimple renders the port list in simple text format
func renderSimple(ports []string) {
	for _, port := range ports {
		fmt.Println(port)
	}
}

// portInfos collects info for ports, skipping ports that vanished.
func portInfos(ports []string) []*serial.PortInfo {
	infos := make([]*serial.PortInfo, 0, len(ports))
	for _, port := range ports {
		if info, err := serial.GetPortInfo(port); err == nil {
			infos = append(infos, info)
		}
	}
	return infos
}

func isDriverPort(port string) bool {
	return strings.Contains(port, "://")
}

func displayName(info *serial.PortInfo) string {
	if isDriverPort(info.Path) {
		return info.Path
	}
	return info.Name
}

// getPortType returns a more specific type classification for the port
func getPortType(info *serial.PortInfo) string {
	if scheme, _, ok := strings.Cut(info.Path, "://"); ok {
		return strings.ToUpper(scheme[:1]) + scheme[1:]
	}
	name := strings.ToLower(info.Name)
	switch {
	case strings.HasPrefix(name, "ttyusb"):
		return "USB Serial"
	case strings.HasPrefix(name, "ttyacm"):
		return "USB CDC/ACM"
	case strings.HasPrefix(name, "ttyama"):
		return "ARM Serial"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial"
	case strings.HasPrefix(name, "ttysac"):
		return "Samsung Serial"
	case strings.HasPrefix(name, "ttyths"):
		return "Tegra Serial"
	case strings.HasPrefix(name, "ttyo"):
		return "OMAP Serial"
	case strings.HasPrefix(name, "ttys"):
		return "Standard Serial"
	default:
		return "Serial Port"
	}
}
