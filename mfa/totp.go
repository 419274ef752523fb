// Package mfa provides second-factor token verification for regions whose
// access controls require it.
package mfa

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/edurecord/student-records-compliance/interfaces"
)

// TOTPProvider issues and verifies time-based one-time passwords. Subject
// secrets are held in memory; production deployments back this with the
// platform's identity provider.
type TOTPProvider struct {
	issuer string
	clock  func() time.Time

	mu      sync.Mutex
	secrets map[string]string
}

// NewTOTPProvider creates a TOTP provider labelled with the given issuer.
func NewTOTPProvider(issuer string) *TOTPProvider {
	return &TOTPProvider{
		issuer:  issuer,
		clock:   time.Now,
		secrets: make(map[string]string),
	}
}

// Issue returns the current passcode for the subject, creating an enrollment
// secret on first use.
func (p *TOTPProvider) Issue(ctx context.Context, subject string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}

	secret, err := p.secretFor(subject)
	if err != nil {
		return "", err
	}

	code, err := totp.GenerateCode(secret, p.clock())
	if err != nil {
		return "", fmt.Errorf("failed to generate passcode: %w", err)
	}
	return code, nil
}

// Verify checks a passcode for the subject. An unenrolled subject always
// fails verification.
func (p *TOTPProvider) Verify(ctx context.Context, subject, token string) (bool, error) {
	p.mu.Lock()
	secret, ok := p.secrets[subject]
	p.mu.Unlock()
	if !ok {
		return false, nil
	}
	return totp.Validate(token, secret), nil
}

func (p *TOTPProvider) secretFor(subject string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if secret, ok := p.secrets[subject]; ok {
		return secret, nil
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: subject,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}
	p.secrets[subject] = key.Secret()
	return key.Secret(), nil
}

// StaticProvider verifies against fixed tokens. Test use only.
type StaticProvider struct {
	mu     sync.Mutex
	tokens map[string]string
}

// NewStaticProvider creates a provider with fixed subject tokens.
func NewStaticProvider(tokens map[string]string) *StaticProvider {
	copied := make(map[string]string, len(tokens))
	for k, v := range tokens {
		copied[k] = v
	}
	return &StaticProvider{tokens: copied}
}

// Issue returns the subject's fixed token.
func (p *StaticProvider) Issue(ctx context.Context, subject string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	token, ok := p.tokens[subject]
	if !ok {
		return "", fmt.Errorf("no token configured for subject")
	}
	return token, nil
}

// Verify compares against the subject's fixed token.
func (p *StaticProvider) Verify(ctx context.Context, subject, token string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return token != "" && p.tokens[subject] == token, nil
}

var (
	_ interfaces.MFAProvider = (*TOTPProvider)(nil)
	_ interfaces.MFAProvider = (*StaticProvider)(nil)
)
