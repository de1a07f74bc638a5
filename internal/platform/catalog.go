// Package platform holds the static service catalog and the per-user
// connected view derived from the connection set.
package platform

import (
	"strings"

	"github.com/vaultlink/connector-core/internal/models"
)

// catalog is created at load time and read-only afterwards.
var catalog = []models.Platform{
	{
		ID:           "slack",
		DisplayName:  "Slack",
		Category:     models.CategoryChat,
		AuthType:     models.AuthTypeToken,
		Capabilities: []string{models.CapabilityExecute},
		Status:       models.PlatformStatusActive,
	},
	{
		ID:           "discord",
		DisplayName:  "Discord",
		Category:     models.CategoryChat,
		AuthType:     models.AuthTypeToken,
		Capabilities: []string{models.CapabilityExecute},
		Status:       models.PlatformStatusActive,
	},
	{
		ID:           "telegram",
		DisplayName:  "Telegram",
		Category:     models.CategoryChat,
		AuthType:     models.AuthTypeAPIKey,
		Capabilities: []string{models.CapabilityExecute},
		Status:       models.PlatformStatusActive,
	},
	{
		ID:           "gmail",
		DisplayName:  "Gmail",
		Category:     models.CategoryEmail,
		AuthType:     models.AuthTypeOAuth,
		Capabilities: []string{models.CapabilityExecute, models.CapabilitySearch},
		Status:       models.PlatformStatusActive,
	},
	{
		ID:           "sendgrid",
		DisplayName:  "SendGrid",
		Category:     models.CategoryEmail,
		AuthType:     models.AuthTypeAPIKey,
		Capabilities: []string{models.CapabilityExecute},
		Status:       models.PlatformStatusActive,
	},
	{
		ID:           "github",
		DisplayName:  "GitHub",
		Category:     models.CategoryDevTools,
		AuthType:     models.AuthTypeToken,
		Capabilities: []string{models.CapabilityExecute, models.CapabilitySearch},
		Status:       models.PlatformStatusActive,
	},
	{
		ID:           "stripe",
		DisplayName:  "Stripe",
		Category:     models.CategoryPayments,
		AuthType:     models.AuthTypeAPIKey,
		Capabilities: []string{models.CapabilityExecute},
		Status:       models.PlatformStatusActive,
	},
	{
		ID:           "twitter",
		DisplayName:  "X (Twitter)",
		Category:     models.CategorySocial,
		AuthType:     models.AuthTypeOAuth,
		Capabilities: []string{models.CapabilityExecute, models.CapabilitySearch},
		Status:       models.PlatformStatusActive,
	},
	{
		ID:           "notion",
		DisplayName:  "Notion",
		Category:     models.CategoryProductivity,
		AuthType:     models.AuthTypeToken,
		Capabilities: []string{models.CapabilityExecute, models.CapabilitySearch},
		Status:       models.PlatformStatusActive,
	},
	{
		ID:           "dropbox",
		DisplayName:  "Dropbox",
		Category:     models.CategoryProductivity,
		AuthType:     models.AuthTypeOAuth,
		Capabilities: []string{models.CapabilityExecute, models.CapabilitySearch, models.CapabilityUpload},
		Status:       models.PlatformStatusActive,
	},
	{
		ID:           "openrouter",
		DisplayName:  "OpenRouter",
		Category:     models.CategoryAITools,
		AuthType:     models.AuthTypeAPIKey,
		Capabilities: []string{models.CapabilityExecute},
		Status:       models.PlatformStatusActive,
	},
	{
		ID:           "linear",
		DisplayName:  "Linear",
		Category:     models.CategoryDevTools,
		AuthType:     models.AuthTypeAPIKey,
		Capabilities: []string{models.CapabilityExecute},
		Status:       models.PlatformStatusComingSoon,
	},
	{
		ID:           "airtable",
		DisplayName:  "Airtable",
		Category:     models.CategoryProductivity,
		AuthType:     models.AuthTypeOAuth,
		Capabilities: []string{models.CapabilityExecute, models.CapabilitySearch},
		Status:       models.PlatformStatusComingSoon,
	},
}

// Catalog returns a copy of the platform catalog so callers cannot
// mutate the shared entries.
func Catalog() []models.Platform {
	out := make([]models.Platform, len(catalog))
	copy(out, catalog)

	return out
}

// Lookup finds a catalog entry by id, case-insensitive.
func Lookup(id string) (models.Platform, bool) {
	for _, p := range catalog {
		if strings.EqualFold(p.ID, id) {
			return p, true
		}
	}

	return models.Platform{}, false
}
