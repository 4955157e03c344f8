package models

type EmbedRequest struct {
	CoverAudio  []byte
	Payload     []byte
	Config      EncodingConfig
	Passphrase  string
	KeyMaterial KeyMaterial
}

type EmbedResponse struct {
	StegoAudio []byte
	PSNR       float64
}

type ExtractRequest struct {
	StegoAudio  []byte
	Passphrase  string
	KeyMaterial KeyMaterial
	// KeyDerivation is not recorded in the embedded header and must match
	// the one used at embed time.
	KeyDerivation KeyDerivationType
	TestMode      bool
}

type ExtractResponse struct {
	Payload []byte `json:"payload"`
	Size    int    `json:"size"`
}

// KeyMaterial holds caller-supplied asymmetric key PEM blocks. The private
// key is a passphrase-protected PKCS#8 block; persistence of the pair is the
// registry collaborator's concern.
type KeyMaterial struct {
	PublicKeyPEM  []byte
	PrivateKeyPEM []byte
}
