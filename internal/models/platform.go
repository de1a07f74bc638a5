package models

// PlatformCategory groups platforms in the catalog
type PlatformCategory string

const (
	CategoryProductivity PlatformCategory = "productivity"
	CategoryAITools      PlatformCategory = "ai-tools"
	CategorySocial       PlatformCategory = "social"
	CategoryDevTools     PlatformCategory = "dev-tools"
	CategoryChat         PlatformCategory = "chat"
	CategoryEmail        PlatformCategory = "email"
	CategoryPayments     PlatformCategory = "payments"
)

// PlatformAuthType describes how a platform authenticates
type PlatformAuthType string

const (
	AuthTypeAPIKey PlatformAuthType = "api-key"
	AuthTypeOAuth  PlatformAuthType = "oauth"
	AuthTypeToken  PlatformAuthType = "token"
)

// PlatformStatus describes catalog availability
type PlatformStatus string

const (
	PlatformStatusActive     PlatformStatus = "active"
	PlatformStatusComingSoon PlatformStatus = "coming-soon"
	PlatformStatusDeprecated PlatformStatus = "deprecated"
)

// Platform capability verbs
const (
	CapabilityExecute = "execute"
	CapabilitySearch  = "search"
	CapabilityUpload  = "upload"
)

// Platform is a catalog entry describing one connectable service.
// The catalog is read-only after initialization; IsConnected is derived
// per user from the connection set, never stored.
type Platform struct {
	ID           string           `json:"id"`
	DisplayName  string           `json:"display_name"`
	Category     PlatformCategory `json:"category"`
	AuthType     PlatformAuthType `json:"auth_type"`
	Capabilities []string         `json:"capabilities"`
	Status       PlatformStatus   `json:"status"`
	IsConnected  bool             `json:"is_connected"`
}
