package models

// Settings are the user-adjustable vault settings.
type Settings struct {
	AutoLockEnabled        bool `json:"autoLockEnabled"`
	AutoLockTimeoutMinutes int  `json:"autoLockTimeoutMinutes"`
	BiometricEnabled       bool `json:"biometricEnabled"`
}

// SettingsPatch is a partial settings update; nil fields are kept.
type SettingsPatch struct {
	AutoLockEnabled        *bool
	AutoLockTimeoutMinutes *int
	BiometricEnabled       *bool
}
