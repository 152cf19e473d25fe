package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"wallet-alerts/internal/app"
)

var (
	simulateChain    string
	simulateAddress  string
	simulatePrevious float64
	simulateCurrent  float64
	simulateValueUSD float64
	simulateTxID     string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-payment",
	Short: "模拟一笔入账并驱动完整的通知流水线",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateCurrent < 0 || simulatePrevious < 0 {
			return errors.New("--previous 与 --current 不能为负数")
		}

		opts := app.SimulateOptions{
			Chain:    simulateChain,
			Address:  simulateAddress,
			Previous: decimal.NewFromFloat(simulatePrevious),
			Current:  decimal.NewFromFloat(simulateCurrent),
			ValueUSD: simulateValueUSD,
			TxID:     simulateTxID,
		}
		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateChain, "chain", "ETH", "链符号")
	simulateCmd.Flags().StringVar(&simulateAddress, "address", "0x0000000000000000000000000000000000000001", "钱包地址")
	simulateCmd.Flags().Float64Var(&simulatePrevious, "previous", 0, "上一次余额")
	simulateCmd.Flags().Float64Var(&simulateCurrent, "current", 1, "当前余额")
	simulateCmd.Flags().Float64Var(&simulateValueUSD, "value-usd", 0, "当前余额的美元估值")
	simulateCmd.Flags().StringVar(&simulateTxID, "txid", "", "可选的交易哈希（同时驱动交易路径）")
}
