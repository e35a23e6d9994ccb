package rgpipe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Variant selects which table layout a load targets.
type Variant int

const (
	// VariantFlat is the Session -> Stimulation -> Spike layout. Session rows
	// carry the stimulation reference, one row per stimulation.
	VariantFlat Variant = iota + 1

	// VariantGrouped is the Session -> Stimulation -> SpikeGroup -> Spike layout.
	VariantGrouped
)

// DefaultVariant is used when neither flags nor rgpipe.yaml pick a layout.
const DefaultVariant = VariantGrouped

// ParseVariant maps "flat"/"v1" and "grouped"/"v2" onto a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flat", "v1", "1":
		return VariantFlat, nil
	case "grouped", "v2", "2":
		return VariantGrouped, nil
	default:
		return 0, fmt.Errorf("unknown variant %q (expected flat or grouped): %w", s, ErrInvalidConfig)
	}
}

// String returns the configuration name of the variant.
func (v Variant) String() string {
	switch v {
	case VariantFlat:
		return "flat"
	case VariantGrouped:
		return "grouped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(v))
	}
}

// IsValid returns true if the Variant is a defined value.
func (v Variant) IsValid() bool {
	return v == VariantFlat || v == VariantGrouped
}

// Tables returns the variant's tables in insertion (dependency) order.
func (v Variant) Tables() []Table {
	switch v {
	case VariantFlat:
		return []Table{TableSubject, TableStimulation, TableSession, TableSpike}
	case VariantGrouped:
		return []Table{TableSubject, TableSession, TableStimulation, TableSpikeGroup, TableSpike}
	default:
		return nil
	}
}

// Table names a target table.
type Table string

const (
	TableSubject     Table = "subject"
	TableSession     Table = "session"
	TableStimulation Table = "stimulation"
	TableSpikeGroup  Table = "spike_group"
	TableSpike       Table = "spike"
	TableIngestRun   Table = "ingest_run"
)

// LoadConfig contains all parameters needed for a load operation.
type LoadConfig struct {
	// ManifestPath is the JSON or YAML file listing the data sources.
	ManifestPath string

	// Variant selects the table layout.
	Variant Variant

	// DryRun flattens every source without writing anything.
	DryRun bool

	// Timeout is the global timeout for the whole load.
	Timeout time.Duration
}

// Validate checks if the LoadConfig has all required fields and valid values.
// It returns a multi-error if multiple validation failures occur.
func (c *LoadConfig) Validate() error {
	var errs []error

	if c.ManifestPath == "" {
		errs = append(errs, fmt.Errorf("ManifestPath is required: %w", ErrInvalidConfig))
	}
	if !c.Variant.IsValid() {
		errs = append(errs, fmt.Errorf("variant %s is not supported: %w", c.Variant, ErrInvalidConfig))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout cannot be negative: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// BuildConfig contains all parameters needed to create (and optionally drop) tables.
type BuildConfig struct {
	Variant Variant

	// Clean drops the variant's tables before creating them.
	Clean bool

	// Force skips the interactive confirmation for Clean.
	Force bool

	Timeout time.Duration
}

// Validate checks if the BuildConfig is consistent.
func (c *BuildConfig) Validate() error {
	var errs []error

	if !c.Variant.IsValid() {
		errs = append(errs, fmt.Errorf("variant %s is not supported: %w", c.Variant, ErrInvalidConfig))
	}
	if c.Force && !c.Clean {
		errs = append(errs, fmt.Errorf("force flag requires clean to be enabled: %w", ErrInvalidConfig))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout cannot be negative: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// AWSRegion is required for AuthMethodAWSIAM.
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance connection name
	// (project:region:instance), required for AuthMethodGoogleIAM.
	GoogleInstance string

	// Azure Entra ID parameters. If all three are set, Service Principal
	// authentication is used; otherwise the DefaultAzureCredential chain.
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}

// ParseAuthMethod maps configuration spellings onto an AuthMethod.
// The empty string is AuthMethodStandard.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "password":
		return AuthMethodStandard, nil
	case "aws", "aws-iam", "awsiam":
		return AuthMethodAWSIAM, nil
	case "google", "google-iam", "gcp":
		return AuthMethodGoogleIAM, nil
	case "azure", "entra", "azure-entra-id":
		return AuthMethodAzureEntraID, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrUnsupportedAuthMethod)
	}
}
