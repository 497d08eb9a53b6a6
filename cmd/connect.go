package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-report-cli/internal/model"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Store credentials for an external account",
}

var (
	connectAccessToken  string
	connectRefreshToken string
	connectExpiresIn    int
	connectExternalID   string
)

var connectHubSpotCmd = &cobra.Command{
	Use:   "hubspot",
	Short: "Connect a HubSpot account",
	Long:  "Stores the OAuth tokens for a HubSpot account. Private-app tokens can instead be set directly via KPI_HUBSPOT_ACCESS_TOKEN.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return saveConnection(cmd, model.ProviderHubSpot)
	},
}

var connectAnalyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Connect a Google Analytics property",
	RunE: func(cmd *cobra.Command, args []string) error {
		if connectExternalID == "" {
			return eris.New("--external-id (the GA property id) is required")
		}
		return saveConnection(cmd, model.ProviderAnalytics)
	},
}

func saveConnection(cmd *cobra.Command, provider model.Provider) error {
	ctx := cmd.Context()

	if connectAccessToken == "" && connectRefreshToken == "" {
		return eris.New("--access-token or --refresh-token is required")
	}

	env, err := initEnv(ctx, "store")
	if err != nil {
		return err
	}
	defer env.Close()

	conn := model.Connection{
		Provider:     provider,
		AccessToken:  connectAccessToken,
		RefreshToken: connectRefreshToken,
		ExternalID:   connectExternalID,
	}
	if connectExpiresIn > 0 {
		conn.ExpiresAt = time.Now().UTC().Add(time.Duration(connectExpiresIn) * time.Second)
	}

	if err := env.store.SaveConnection(ctx, conn); err != nil {
		return err
	}
	zap.L().Info("connection saved",
		zap.String("provider", string(provider)),
		zap.String("external_id", connectExternalID),
	)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{connectHubSpotCmd, connectAnalyticsCmd} {
		c.Flags().StringVar(&connectAccessToken, "access-token", "", "current access token")
		c.Flags().StringVar(&connectRefreshToken, "refresh-token", "", "refresh token for automatic renewal")
		c.Flags().IntVar(&connectExpiresIn, "expires-in", 0, "access token lifetime in seconds")
		c.Flags().StringVar(&connectExternalID, "external-id", "", "provider-side account id")
	}
	connectCmd.AddCommand(connectHubSpotCmd, connectAnalyticsCmd)
	rootCmd.AddCommand(connectCmd)
}
