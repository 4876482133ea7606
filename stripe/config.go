package stripe

import "fmt"

// Config holds the payment provider configuration.
type Config struct {
	APIKey        string `yaml:"api_key" json:"api_key"`
	WebhookSecret string `yaml:"webhook_secret" json:"webhook_secret"`
	// SuccessURL and CancelURL are the storefront pages the buyer lands on
	// after finishing or abandoning a hosted checkout.
	SuccessURL string `yaml:"success_url" json:"success_url"`
	CancelURL  string `yaml:"cancel_url" json:"cancel_url"`
}

// Validate checks that the required fields are set.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("stripe API key is required")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("stripe webhook secret is required")
	}
	if c.SuccessURL == "" || c.CancelURL == "" {
		return fmt.Errorf("checkout success and cancel URLs are required")
	}
	return nil
}
