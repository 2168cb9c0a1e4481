package credentials

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"stocktracker_backend/models"

	"github.com/go-resty/resty/v2"
)

// signupResponse is the payload returned by the provider signup endpoint
type signupResponse struct {
	APIKey  string `json:"api_key"`
	Key     string `json:"apiKey"`
	Message string `json:"message"`
}

// AutoRegister provisions a fresh AlphaVantage credential through the
// provider signup flow and adds it to the shared pool. The feature is gated
// by configuration and skips addresses on the deny-list.
func (p *Pool) AutoRegister(ctx context.Context, email string) error {
	if !p.opts.AutoRegisterEnabled {
		return fmt.Errorf("credential auto-registration is disabled")
	}
	if p.denied(email) {
		return fmt.Errorf("email %s is on the auto-registration deny-list", email)
	}

	client := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	var result signupResponse
	resp, err := client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"email":        email,
			"first_text":   "deprecated",
			"last_text":    "deprecated",
			"occupation":   "Investor",
			"organization": "Personal",
		}).
		SetResult(&result).
		Post(p.opts.SignupURL)
	if err != nil {
		return fmt.Errorf("signup request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("signup request failed with status %d", resp.StatusCode())
	}

	key := result.APIKey
	if key == "" {
		key = result.Key
	}
	if key == "" {
		return fmt.Errorf("signup response contained no API key: %s", result.Message)
	}

	if err := p.AddKey(ctx, models.ProviderAlphaVantage, key, nil); err != nil {
		return err
	}

	log.Printf("Auto-registered new %s credential via %s", models.ProviderAlphaVantage, maskEmail(email))
	return nil
}

// denied reports whether email matches the deny-list. Entries match the full
// address or, when they start with "@", the whole domain.
func (p *Pool) denied(email string) bool {
	lowered := strings.ToLower(strings.TrimSpace(email))
	for _, entry := range p.opts.DenyList {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "@") {
			if strings.HasSuffix(lowered, entry) {
				return true
			}
			continue
		}
		if lowered == entry {
			return true
		}
	}
	return false
}

// maskEmail masks the local part of an address for logging
func maskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 1 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
