package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"watering_notification_bot/internal/infra/sensor"
)

func newReadSensorCmd() *cobra.Command {
	var (
		channel  int
		count    int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "read-sensor",
		Short: "Print raw moisture readings of one channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := sensor.Open(cfg.SensorDriver, cfg.SPIPort, cfg.SensorTimeout)
			if err != nil {
				return err
			}
			defer reader.Close()

			ctx := cmd.Context()
			for i := 0; count <= 0 || i < count; i++ {
				if i > 0 {
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(interval):
					}
				}
				v, err := reader.Read(ctx, channel)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s channel=%d value=%d\n", time.Now().Format(time.TimeOnly), channel, v)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&channel, "channel", 0, "ADC channel (0-7)")
	cmd.Flags().IntVar(&count, "count", 10, "Number of readings, 0 for unlimited")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Delay between readings")
	return cmd
}
