package models

// Modality is the kind of biometric factor a platform offers.
type Modality string

const (
	ModalityNone        Modality = ""
	ModalityFingerprint Modality = "fingerprint"
	ModalityFacial      Modality = "facial"
	ModalityIris        Modality = "iris"
)

// AuthConfig is the persisted credential configuration. An empty PINHash
// means no PIN has been set up.
type AuthConfig struct {
	PINHash          string `json:"pinHash,omitempty"`
	BiometricEnabled bool   `json:"biometricEnabled"`
}

// AuthResult is the outcome of an authentication attempt. A failed attempt is
// a normal result, not an error. PINRequired tells the caller to present
// PIN entry next.
type AuthResult struct {
	Success     bool
	Modality    Modality
	PINRequired bool
	Error       string
}

// AuthState is the caller-facing summary of the session.
type AuthState struct {
	IsAuthenticated bool
	IsInitialized   bool
	Modality        Modality
	Error           string
	// DataLost is set when a corrupt vault blob was discarded during this
	// process lifetime.
	DataLost bool
}
