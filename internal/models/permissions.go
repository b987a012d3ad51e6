package models

// Application permissions
const (
	PermissionTransactionRead  = "transactions:read"
	PermissionTransactionWrite = "transactions:write"

	PermissionFraudRead   = "fraud:read"
	PermissionFraudReview = "fraud:review"

	PermissionRulesRead  = "rules:read"
	PermissionRulesWrite = "rules:write"

	PermissionSettingsRead  = "settings:read"
	PermissionSettingsWrite = "settings:write"

	PermissionAnalyticsRead = "analytics:read"
	PermissionModelsManage  = "models:manage"
	PermissionLedgerRead    = "ledger:read"

	PermissionChangePassword = "user:change-password"

	PermissionReadAdmin  = "admin:read"
	PermissionWriteAdmin = "admin:write"
)

// GetDefaultPermissions returns default permissions based on role
func GetDefaultPermissions(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{
			PermissionTransactionRead,
			PermissionTransactionWrite,
			PermissionFraudRead,
			PermissionFraudReview,
			PermissionRulesRead,
			PermissionRulesWrite,
			PermissionSettingsRead,
			PermissionSettingsWrite,
			PermissionAnalyticsRead,
			PermissionModelsManage,
			PermissionLedgerRead,
			PermissionChangePassword,
			PermissionReadAdmin,
			PermissionWriteAdmin,
		}
	case RoleAnalyst:
		return []string{
			PermissionTransactionRead,
			PermissionTransactionWrite,
			PermissionFraudRead,
			PermissionFraudReview,
			PermissionRulesRead,
			PermissionSettingsRead,
			PermissionAnalyticsRead,
			PermissionLedgerRead,
			PermissionChangePassword,
		}
	case RoleUser:
		return []string{
			PermissionTransactionRead,
			PermissionFraudRead,
			PermissionChangePassword,
		}
	case RoleService:
		return []string{
			PermissionTransactionWrite,
			PermissionTransactionRead,
		}
	default:
		return []string{}
	}
}
