package models

type CapacityResult struct {
	// Payload capacity in bytes per LSB width, after the embedded header
	OneLSB   int `json:"1_lsb"`
	TwoLSB   int `json:"2_lsb"`
	ThreeLSB int `json:"3_lsb"`
	FourLSB  int `json:"4_lsb"`
}
