package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// AzurePostgreSQLScope is the Entra ID scope for Azure Database for PostgreSQL.
const AzurePostgreSQLScope = "https://ossrdbms-aad.database.windows.net/.default"

// AzureTokenProvider wraps any azcore credential.
type AzureTokenProvider struct {
	credential azcore.TokenCredential
	label      string
}

// NewAzureTokenProvider uses a service principal when all three of tenantID,
// clientID and clientSecret are set, and DefaultAzureCredential otherwise.
func NewAzureTokenProvider(tenantID, clientID, clientSecret string) (*AzureTokenProvider, error) {
	if tenantID != "" && clientID != "" && clientSecret != "" {
		cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
		if err != nil {
			return nil, fmt.Errorf("azure service principal: %w", err)
		}
		return &AzureTokenProvider{credential: cred, label: fmt.Sprintf("azure-sp(tenant=%s, client=%s)", tenantID, clientID)}, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure default credential: %w", err)
	}
	return &AzureTokenProvider{credential: cred, label: "azure-default"}, nil
}

func (p *AzureTokenProvider) GetToken(ctx context.Context) (string, time.Time, error) {
	tok, err := p.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{AzurePostgreSQLScope}})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("azure token: %w", err)
	}
	return tok.Token, tok.ExpiresOn, nil
}

func (p *AzureTokenProvider) String() string { return p.label }

func newAzureConnector(cfg *rgpipe.ConnectionConfig, logger rgpipe.Logger) (rgpipe.Connector, error) {
	provider, err := NewAzureTokenProvider(cfg.AzureTenantID, cfg.AzureClientID, cfg.AzureClientSecret)
	if err != nil {
		return nil, err
	}
	return NewTokenConnector(cfg, provider, "Azure", logger), nil
}
