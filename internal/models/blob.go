package models

// BlobVersion is the current EncryptedBlob layout version.
const BlobVersion = 1

// EncryptedBlob is the persisted form of the whole record collection. Byte
// fields are base64 encoded by encoding/json. Salt and IV are regenerated on
// every save.
type EncryptedBlob struct {
	Version    int    `json:"v"`
	Algorithm  string `json:"alg,omitempty"`
	Ciphertext []byte `json:"ciphertext"`
	IV         []byte `json:"iv"`
	Salt       []byte `json:"salt"`
}
