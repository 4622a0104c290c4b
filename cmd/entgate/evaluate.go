package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/archvision/entgate/internal/domain"
	"github.com/archvision/entgate/internal/engine"
	"github.com/archvision/entgate/internal/logging"
)

func evaluateCmd() *cobra.Command {
	var (
		tenantID    string
		productCode string
		action      string
		userID      string
		featureCode string
		assetType   string
		assetID     string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one permission request",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, err := getStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			logging.Decisions().SetEnabled(false)
			eng := engine.New(st, st)

			decision, err := eng.CheckPermission(ctx, domain.EvaluationContext{
				TenantID:    tenantID,
				ProductCode: productCode,
				Action:      action,
				UserID:      userID,
				FeatureCode: featureCode,
				Asset: domain.AssetRef{
					Type: domain.AssetType(assetType),
					ID:   assetID,
				},
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(decision)
			}

			if decision.Allowed {
				fmt.Printf("ALLOWED  %s\n", decision.ID)
			} else {
				fmt.Printf("DENIED   %s  gate=%s reason=%s\n", decision.ID, decision.FailedGate, decision.ReasonCode)
				fmt.Printf("         %s\n", decision.Reason)
			}
			for _, g := range decision.Trail {
				fmt.Printf("  %-12s %s", g.Gate, g.Status)
				if g.Detail != "" {
					fmt.Printf("  (%s)", g.Detail)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&productCode, "product", "", "Product code")
	cmd.Flags().StringVar(&action, "action", "", "Action (e.g. render:create)")
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&featureCode, "feature", "", "Feature code (optional)")
	cmd.Flags().StringVar(&assetType, "asset-type", "", "Asset type (optional)")
	cmd.Flags().StringVar(&assetID, "asset-id", "", "Asset ID (optional)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the decision as JSON")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("product")
	cmd.MarkFlagRequired("action")
	cmd.MarkFlagRequired("user")

	return cmd
}

func quotaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Check or consume quotas",
	}

	var (
		tenantID    string
		productCode string
		quotaCode   string
		amount      int64
	)

	addFlags := func(c *cobra.Command) {
		c.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID")
		c.Flags().StringVar(&productCode, "product", "", "Product code")
		c.Flags().StringVar(&quotaCode, "quota", "", "Quota code")
		c.Flags().Int64Var(&amount, "amount", 1, "Amount")
		c.MarkFlagRequired("tenant")
		c.MarkFlagRequired("product")
		c.MarkFlagRequired("quota")
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a quota can absorb an amount",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, err := getStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			logging.Decisions().SetEnabled(false)
			eng := engine.New(st, st)
			status, err := eng.CheckQuota(ctx, tenantID, productCode, quotaCode, amount)
			if err != nil {
				return err
			}
			printQuotaStatus(status)
			return nil
		},
	}
	addFlags(checkCmd)

	consumeCmd := &cobra.Command{
		Use:   "consume",
		Short: "Atomically consume from a quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, err := getStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			status, err := st.ConsumeQuota(ctx, tenantID, productCode, quotaCode, amount)
			if err != nil {
				return err
			}
			printQuotaStatus(status)
			if !status.Sufficient {
				os.Exit(1)
			}
			return nil
		},
	}
	addFlags(consumeCmd)

	cmd.AddCommand(checkCmd, consumeCmd)
	return cmd
}

func printQuotaStatus(s *domain.QuotaStatus) {
	verdict := "INSUFFICIENT"
	if s.Sufficient {
		verdict = "SUFFICIENT"
	}
	if s.Limit == domain.UnlimitedQuota {
		fmt.Printf("%s  used=%d limit=unlimited\n", verdict, s.Used)
		return
	}
	fmt.Printf("%s  used=%d limit=%d remaining=%d\n", verdict, s.Used, s.Limit, s.Remaining)
}
