package common

// Secure store keys. Each value is owned by exactly one component.
const (
	KeyEncryptedSecrets = "encrypted_secrets"
	KeyAuthConfig       = "auth_config"
	KeyDeviceSeed       = "device_seed"
	KeyAutoLockSettings = "autolock_settings"
	KeyLastActivity     = "last_activity"
)

// RootSecretSize is the length in bytes of the device seed.
const RootSecretSize = 32
