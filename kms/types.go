package kms

import (
	"context"

	wrapping "github.com/hashicorp/go-kms-wrapping/v2"
)

// Provider represents a KMS provider used to wrap student-record key
// versions at rest.
type Provider interface {
	// GetWrapper returns the underlying KMS wrapper
	GetWrapper() wrapping.Wrapper

	// Test performs a test encryption/decryption
	Test(ctx context.Context) error

	// HealthCheck performs a comprehensive health check
	HealthCheck(ctx context.Context) error

	// GetLastHealthCheckError returns the last health check error
	GetLastHealthCheckError() error
}

// ProviderType represents the type of KMS provider
type ProviderType string

// Provider type constants
const (
	ProviderAWS   ProviderType = "aws"
	ProviderAzure ProviderType = "azure"
	ProviderGCP   ProviderType = "gcp"
	ProviderVault ProviderType = "vault"
	ProviderAead  ProviderType = "aead" // local AES-GCM root key, for dev and tests
)

// Config selects and configures a KMS provider. Exactly one of the
// provider-specific sections must be set, matching Type.
type Config struct {
	Type  ProviderType `json:"type" bson:"type"`
	AWS   *AWSConfig   `json:"aws,omitempty" bson:"aws,omitempty"`
	Azure *AzureConfig `json:"azure,omitempty" bson:"azure,omitempty"`
	GCP   *GCPConfig   `json:"gcp,omitempty" bson:"gcp,omitempty"`
	Vault *VaultConfig `json:"vault,omitempty" bson:"vault,omitempty"`

	// AEAD provider settings
	AeadKeyBase64 string `json:"aeadKeyBase64,omitempty" bson:"aeadKeyBase64,omitempty"`
	AeadKeyID     string `json:"aeadKeyId,omitempty" bson:"aeadKeyId,omitempty"`
}

// AWSConfig holds AWS KMS settings.
type AWSConfig struct {
	KeyID       string                 `json:"keyId" bson:"keyId"` // key ARN
	Region      string                 `json:"region" bson:"region"`
	Credentials map[string]interface{} `json:"credentials,omitempty" bson:"credentials,omitempty"`
}

// AzureConfig holds Azure Key Vault settings.
type AzureConfig struct {
	KeyID        string                 `json:"keyId" bson:"keyId"` // key identifier URL
	VaultAddress string                 `json:"vaultAddress" bson:"vaultAddress"`
	Credentials  map[string]interface{} `json:"credentials,omitempty" bson:"credentials,omitempty"`
}

// GCPConfig holds Google Cloud KMS settings.
type GCPConfig struct {
	// ResourceName is the full crypto key path:
	// projects/{project}/locations/{location}/keyRings/{keyRing}/cryptoKeys/{cryptoKey}
	ResourceName string                 `json:"resourceName" bson:"resourceName"`
	Credentials  map[string]interface{} `json:"credentials,omitempty" bson:"credentials,omitempty"`
}

// VaultConfig holds HashiCorp Vault transit settings.
type VaultConfig struct {
	KeyID        string                 `json:"keyId" bson:"keyId"` // transit key name
	VaultAddress string                 `json:"vaultAddress" bson:"vaultAddress"`
	VaultMount   string                 `json:"vaultMount,omitempty" bson:"vaultMount,omitempty"`
	Credentials  map[string]interface{} `json:"credentials,omitempty" bson:"credentials,omitempty"`
}
