package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/ccie14023/cataspark/internal/shell"
)

var bgpCmd = &cobra.Command{
	Use:   "bgp",
	Short: "Change BGP state on the device",
}

var bgpASN string

var bgpShutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Shut down the whole BGP process through NETCONF edit-config",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		device, err := netconfDevice(cfg)
		if err != nil {
			return err
		}
		asn := bgpASN
		if asn == "" {
			asn = cfg.Bot.ASN
		}
		if err := device.ShutdownBGP(cmd.Context(), asn); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "BGP %s shut down on %s\n", asn, cfg.Device.Host)
		return nil
	},
}

func neighborCommand(dir shell.Direction, label string) *cobra.Command {
	return &cobra.Command{
		Use:   string(dir) + " <neighbor-ip>",
		Short: fmt.Sprintf("Set one BGP neighbor %s through the device shell", label),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ip := args[0]
			if net.ParseIP(ip).To4() == nil {
				return fmt.Errorf("%q is not an IPv4 address", ip)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			asn := bgpASN
			if asn == "" {
				asn = cfg.Bot.ASN
			}
			if err := shellToggler(cfg).Toggle(cmd.Context(), dir, ip, asn); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "BGP neighbor %s set to %s.\n", ip, label)
			return nil
		},
	}
}

func init() {
	bgpCmd.PersistentFlags().StringVar(&bgpASN, "asn", "", "BGP AS number (default: bot.asn)")
	bgpCmd.AddCommand(bgpShutdownCmd)
	bgpCmd.AddCommand(neighborCommand(shell.Down, "DOWN"))
	bgpCmd.AddCommand(neighborCommand(shell.Up, "UP"))
}
