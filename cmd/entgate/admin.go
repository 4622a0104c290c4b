package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/archvision/entgate/internal/domain"
	"github.com/archvision/entgate/internal/service"
	"github.com/archvision/entgate/internal/store"
)

func adminService(ctx context.Context) (*service.AdminService, store.Store, error) {
	st, err := getStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return service.NewAdminService(st, nil, nil), st, nil
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants, products and grants",
	}

	var (
		name        string
		displayType string
	)
	createCmd := &cobra.Command{
		Use:   "create <tenant-id>",
		Short: "Create a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, st, err := adminService(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			tenant, suggestions, err := svc.CreateTenant(ctx, service.CreateTenantRequest{
				ID: args[0], Name: name, DisplayType: displayType,
			})
			if err != nil {
				return err
			}
			fmt.Printf("created tenant %s (%s)\n", tenant.ID, tenant.Name)
			if len(suggestions) > 0 {
				fmt.Printf("suggested products: %s\n", strings.Join(suggestions, ", "))
			}
			return nil
		},
	}
	createCmd.Flags().StringVar(&name, "name", "", "Tenant name")
	createCmd.Flags().StringVar(&displayType, "type", "", "Display type (mall, brand, dealer, ...)")
	createCmd.MarkFlagRequired("name")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, st, err := adminService(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			tenants, err := svc.ListTenants(ctx, 100, 0)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS")
			for _, tenant := range tenants {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tenant.ID, tenant.Name, tenant.DisplayType, tenant.Status)
			}
			return w.Flush()
		},
	}

	enableCmd := &cobra.Command{
		Use:   "enable-product <tenant-id> <product-code>",
		Short: "Activate a product for a tenant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, st, err := adminService(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if _, err := svc.EnableProduct(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("enabled %s for %s\n", args[1], args[0])
			return nil
		},
	}

	var (
		grantKind string
		revoke    bool
		limit     int64
	)
	grantCmd := &cobra.Command{
		Use:   "grant <tenant-id> <product-code> <entitlement-code>",
		Short: "Grant or revoke an entitlement",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, st, err := adminService(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			tenantID, productCode, code := args[0], args[1], args[2]
			switch domain.EntitlementKind(grantKind) {
			case domain.KindFeature:
				err = svc.SetFeature(ctx, tenantID, productCode, code, !revoke)
			case domain.KindService:
				err = svc.SetService(ctx, tenantID, productCode, code, !revoke)
			case domain.KindQuota:
				err = svc.SetQuotaLimit(ctx, tenantID, productCode, code, limit)
			default:
				return fmt.Errorf("--kind must be feature, quota or service")
			}
			return err
		},
	}
	grantCmd.Flags().StringVar(&grantKind, "kind", "feature", "Entitlement kind (feature, quota, service)")
	grantCmd.Flags().BoolVar(&revoke, "revoke", false, "Revoke instead of grant")
	grantCmd.Flags().Int64Var(&limit, "limit", 0, "Quota limit (-1 for unlimited; quota kind only)")

	var status string
	statusCmd := &cobra.Command{
		Use:   "set-status <tenant-id>",
		Short: "Activate or deactivate a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, st, err := adminService(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			_, err = svc.SetTenantStatus(ctx, args[0], domain.TenantStatus(status))
			return err
		},
	}
	statusCmd.Flags().StringVar(&status, "status", "", "active or inactive")
	statusCmd.MarkFlagRequired("status")

	cmd.AddCommand(createCmd, listCmd, enableCmd, grantCmd, statusCmd)
	return cmd
}

func roleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage roles and assignments",
	}

	var permissions []string
	createCmd := &cobra.Command{
		Use:   "create <tenant-id> <role-name>",
		Short: "Create or update a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, st, err := adminService(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			role, err := svc.UpsertRole(ctx, &domain.Role{
				TenantID:    args[0],
				Name:        args[1],
				Permissions: permissions,
			})
			if err != nil {
				return err
			}
			fmt.Printf("role %s (%s): %s\n", role.Name, role.ID, strings.Join(role.Permissions, ", "))
			return nil
		},
	}
	createCmd.Flags().StringSliceVar(&permissions, "perm", nil, "Permitted action (repeatable; * for all)")

	assignCmd := &cobra.Command{
		Use:   "assign <tenant-id> <user-id> <role-id>",
		Short: "Assign a role to a user within a tenant",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, st, err := adminService(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			return svc.AssignRole(ctx, args[1], args[0], args[2])
		},
	}

	listCmd := &cobra.Command{
		Use:   "list <tenant-id>",
		Short: "List roles in a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, st, err := adminService(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			roles, err := svc.ListRoles(ctx, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPERMISSIONS")
			for _, role := range roles {
				fmt.Fprintf(w, "%s\t%s\t%s\n", role.ID, role.Name, strings.Join(role.Permissions, ","))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(createCmd, assignCmd, listCmd)
	return cmd
}

func assetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset",
		Short: "Manage tenant-owned assets",
	}

	createCmd := &cobra.Command{
		Use:   "create <owner-tenant-id> <asset-type> <asset-id>",
		Short: "Register an asset under a tenant",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, st, err := adminService(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			_, err = svc.CreateAsset(ctx, &domain.Asset{
				Type:          domain.AssetType(args[1]),
				ID:            args[2],
				OwnerTenantID: args[0],
			})
			return err
		},
	}

	listCmd := &cobra.Command{
		Use:   "list <tenant-id>",
		Short: "List a tenant's assets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, st, err := adminService(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			assets, err := svc.ListAssets(ctx, args[0], "")
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tID\tOWNER")
			for _, a := range assets {
				fmt.Fprintf(w, "%s\t%s\t%s\n", a.Type, a.ID, a.OwnerTenantID)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(createCmd, listCmd)
	return cmd
}
