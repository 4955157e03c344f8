package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xErkAy/audio-protection/models"
	"github.com/xErkAy/audio-protection/service"
)

// Handlers struct holds service dependencies
type Handlers struct {
	steganographyService service.SteganographyService
	cryptographyService  service.CryptographyService
	audioService         service.AudioService
}

// NewHandlers creates a new handlers instance with service dependencies
func NewHandlers(
	stegoService service.SteganographyService,
	cryptoService service.CryptographyService,
	audioService service.AudioService,
) *Handlers {
	return &Handlers{
		steganographyService: stegoService,
		cryptographyService:  cryptoService,
		audioService:         audioService,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// CapacityResponse represents the capacity calculation response
type CapacityResponse struct {
	Capacities       models.CapacityResult `json:"capacities"`
	Stride           int                   `json:"stride"`
	FileInfo         FileInfo              `json:"file_info"`
	ProcessingTimeMs int                   `json:"processing_time_ms"`
}

// FileInfo represents audio file information
type FileInfo struct {
	Filename   string `json:"filename"`
	SizeBytes  int    `json:"size_bytes"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	BitDepth   int    `json:"bit_depth,omitempty"`
}

// HealthHandler handles the health check endpoint
//
//	@Summary		Health Check
//	@Description	Returns the health status of the API service
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"Service is healthy"
//	@Router			/health [get]
func (h *Handlers) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "1.0.0",
	})
}

// CalculateCapacityHandler handles the capacity calculation request
//
//	@Summary		Calculate WAV Embedding Capacity
//	@Description	Calculates the maximum payload size (in bytes) that can be embedded into an uploaded RIFF/WAVE PCM file for 1..4 LSBs at the given stride, after the self-describing header.
//	@Tags			Steganography
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			audio	formData	file					true	"WAV audio file to calculate capacity for."
//	@Param			stride	formData	int						false	"Spacing between modified bytes (default 1)"
//	@Success		200		{object}	CapacityResponse		"Successfully calculated embedding capacity."
//	@Failure		400		{object}	models.ErrorResponse	"Bad Request: No file uploaded, file is not WAV, or file is corrupted."
//	@Failure		500		{object}	models.ErrorResponse	"Internal Server Error: Failed to process the file."
//	@Router			/capacity [post]
func (h *Handlers) CalculateCapacityHandler(c *gin.Context) {
	startTime := time.Now()

	audioData, fileHeader, ok := h.readWAVUpload(c, "audio")
	if !ok {
		return
	}

	stride := 1
	if strideStr := c.PostForm("stride"); strideStr != "" {
		var err error
		stride, err = strconv.Atoi(strideStr)
		if err != nil || stride < 1 {
			sendError(c, http.StatusBadRequest, "INVALID_STRIDE", "Stride must be a positive integer")
			return
		}
	}

	capacities, err := h.steganographyService.CalculateCapacity(audioData, stride)
	if err != nil {
		sendServiceError(c, err)
		return
	}

	fileInfo := FileInfo{
		Filename:  fileHeader.Filename,
		SizeBytes: int(fileHeader.Size),
	}
	if wav, err := h.audioService.ParseWAV(audioData); err == nil {
		fileInfo.SampleRate = wav.SampleRate
		fileInfo.Channels = wav.Channels
		fileInfo.BitDepth = wav.BitsPerSample
	}

	processingTime := int(time.Since(startTime).Milliseconds())
	c.Header("X-Processing-Time", strconv.Itoa(processingTime))
	c.JSON(http.StatusOK, CapacityResponse{
		Capacities:       *capacities,
		Stride:           stride,
		FileInfo:         fileInfo,
		ProcessingTimeMs: processingTime,
	})
}

// EmbedHandler embeds a payload into a WAV file using LSB steganography
//
//	@Summary		Embed payload into WAV audio
//	@Description	Embeds a payload into the provided RIFF/WAVE PCM file using n-LSB steganography with configurable stride, error correction (none/hamming/rs) and encryption (none/fernet/aes/rsa). The embedding parameters are recorded in a self-describing header, so extraction needs only the passphrase, the key derivation variant and (for rsa) the private key.
//	@Tags			Steganography
//	@Accept			multipart/form-data
//	@Produce		audio/wav
//	@Param			audio				formData	file	true	"Cover WAV file"
//	@Param			payload				formData	file	true	"Payload file to embed"
//	@Param			lsb					formData	int		false	"Number of LSBs to use (1-16, default 2)"
//	@Param			stride				formData	int		false	"Spacing between modified bytes (default 4)"
//	@Param			redundant_bits		formData	int		false	"Error-correction redundancy parameter (default 8)"
//	@Param			error_correction	formData	string	false	"Error correction variant: none, hamming or rs"
//	@Param			encryption			formData	string	false	"Encryption variant: none, fernet, aes or rsa"
//	@Param			key_derivation		formData	string	false	"Key derivation variant: none, pbkdf2 or scrypt"
//	@Param			passphrase			formData	string	false	"Passphrase for key derivation or the RSA private key"
//	@Param			public_key			formData	file	false	"RSA public key PEM (rsa encryption only)"
//	@Param			repeat_data			formData	bool	false	"Cyclically repeat the payload to fill capacity"
//	@Param			output_filename		formData	string	false	"Output stego audio filename"
//	@Success		200	{file}		binary					"Stego WAV file with embedded payload"
//	@Failure		400	{object}	models.ErrorResponse	"Invalid input"
//	@Failure		413	{object}	models.ErrorResponse	"Payload exceeds carrier capacity"
//	@Failure		500	{object}	models.ErrorResponse	"Processing error"
//	@Router			/embed [post]
func (h *Handlers) EmbedHandler(c *gin.Context) {
	startTime := time.Now()

	audioData, _, ok := h.readWAVUpload(c, "audio")
	if !ok {
		return
	}

	payloadHeader, err := c.FormFile("payload")
	if err != nil {
		sendError(c, http.StatusBadRequest, "MISSING_FILES", "Payload file not provided")
		return
	}
	payloadFile, err := payloadHeader.Open()
	if err != nil {
		sendError(c, http.StatusInternalServerError, "PROCESSING_ERROR", "Failed to open payload file")
		return
	}
	defer payloadFile.Close()
	payloadData, err := io.ReadAll(payloadFile)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "PROCESSING_ERROR", "Failed to read payload file")
		return
	}

	config, ok := h.readConfig(c)
	if !ok {
		return
	}

	material, ok := h.readKeyMaterial(c, config.Encryption, false)
	if !ok {
		return
	}

	embedReq := &models.EmbedRequest{
		CoverAudio:  audioData,
		Payload:     payloadData,
		Config:      config,
		Passphrase:  c.PostForm("passphrase"),
		KeyMaterial: material,
	}

	resp, err := h.steganographyService.Embed(embedReq)
	if err != nil {
		sendServiceError(c, err)
		return
	}

	processingTime := int(time.Since(startTime).Milliseconds())
	outputFilename := c.PostForm("output_filename")
	if outputFilename == "" {
		outputFilename = "stego_audio.wav"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", outputFilename))
	c.Header("X-PSNR-Value", fmt.Sprintf("%.2f", resp.PSNR))
	c.Header("X-Embedding-Method", fmt.Sprintf("%d-LSB", config.LSB))
	c.Header("X-Secret-Size", strconv.Itoa(len(payloadData)))
	c.Header("X-Processing-Time", strconv.Itoa(processingTime))

	c.Data(http.StatusOK, "audio/wav", resp.StegoAudio)
}

// ExtractHandler extracts a payload from a stego WAV file
//
//	@Summary		Extract payload from WAV audio
//	@Description	Extracts a payload that was previously embedded in a RIFF/WAVE PCM file. The embedding parameters are read from the self-describing header; only the passphrase, the key derivation variant and (for rsa) the private key must be supplied.
//	@Tags			Steganography
//	@Accept			multipart/form-data
//	@Produce		application/octet-stream
//	@Param			stego_audio		formData	file	true	"Stego WAV file with embedded payload"
//	@Param			passphrase		formData	string	false	"Passphrase used at embed time"
//	@Param			key_derivation	formData	string	false	"Key derivation variant used at embed time: none, pbkdf2 or scrypt"
//	@Param			private_key		formData	file	false	"RSA private key PEM (rsa encryption only)"
//	@Param			output_filename	formData	string	false	"Optional output filename override"
//	@Success		200	{file}		binary					"Extracted payload"
//	@Failure		400	{object}	models.ErrorResponse	"Invalid input"
//	@Failure		401	{object}	models.ErrorResponse	"Wrong passphrase or key"
//	@Failure		422	{object}	models.ErrorResponse	"Uncorrectable codeword"
//	@Failure		500	{object}	models.ErrorResponse	"Extraction error"
//	@Router			/extract [post]
func (h *Handlers) ExtractHandler(c *gin.Context) {
	startTime := time.Now()

	stegoData, _, ok := h.readWAVUpload(c, "stego_audio")
	if !ok {
		return
	}

	kdf := models.KeyDerivationPBKDF2
	if v := c.PostForm("key_derivation"); v != "" {
		var valid bool
		kdf, valid = models.ParseKeyDerivationType(v)
		if !valid {
			sendError(c, http.StatusBadRequest, "INVALID_KEY_DERIVATION", "Key derivation must be none, pbkdf2 or scrypt")
			return
		}
	}

	material, ok := h.readKeyMaterial(c, models.EncryptionRSA, true)
	if !ok {
		return
	}

	extractReq := &models.ExtractRequest{
		StegoAudio:    stegoData,
		Passphrase:    c.PostForm("passphrase"),
		KeyMaterial:   material,
		KeyDerivation: kdf,
	}

	resp, err := h.steganographyService.Extract(extractReq)
	if err != nil {
		sendServiceError(c, err)
		return
	}

	processingTime := int(time.Since(startTime).Milliseconds())
	outputFilename := c.PostForm("output_filename")
	if outputFilename == "" {
		outputFilename = "payload.bin"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", outputFilename))
	c.Header("X-Secret-Size", strconv.Itoa(resp.Size))
	c.Header("X-Processing-Time", strconv.Itoa(processingTime))

	c.Data(http.StatusOK, "application/octet-stream", resp.Payload)
}

// readWAVUpload fetches and validates a WAV form upload.
func (h *Handlers) readWAVUpload(c *gin.Context, field string) ([]byte, *multipart.FileHeader, bool) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		sendError(c, http.StatusBadRequest, "MISSING_FILE", "Audio file not provided")
		return nil, nil, false
	}

	if ext := strings.ToLower(filepath.Ext(fileHeader.Filename)); ext != ".wav" {
		sendError(c, http.StatusBadRequest, "INVALID_FORMAT", "File must be in WAV format")
		return nil, nil, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		sendError(c, http.StatusInternalServerError, "PROCESSING_ERROR", "Failed to open uploaded file")
		return nil, nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "PROCESSING_ERROR", "Failed to read file content")
		return nil, nil, false
	}

	log.Printf("[DEBUG] readWAVUpload: Received file '%s' (size: %d bytes)", fileHeader.Filename, fileHeader.Size)
	return data, fileHeader, true
}

// readConfig assembles an EncodingConfig from embed form fields.
func (h *Handlers) readConfig(c *gin.Context) (models.EncodingConfig, bool) {
	config := models.DefaultEncodingConfig()

	if v := c.PostForm("lsb"); v != "" {
		lsb, err := strconv.Atoi(v)
		if err != nil {
			sendError(c, http.StatusBadRequest, "INVALID_LSB", "LSB value must be an integer between 1 and 16")
			return config, false
		}
		config.LSB = lsb
	}
	if v := c.PostForm("stride"); v != "" {
		stride, err := strconv.Atoi(v)
		if err != nil {
			sendError(c, http.StatusBadRequest, "INVALID_STRIDE", "Stride must be a positive integer")
			return config, false
		}
		config.Stride = stride
	}
	if v := c.PostForm("redundant_bits"); v != "" {
		bits, err := strconv.Atoi(v)
		if err != nil {
			sendError(c, http.StatusBadRequest, "INVALID_REDUNDANT_BITS", "Redundant bits must be a non-negative integer")
			return config, false
		}
		config.RedundantBits = bits
	}

	if v := c.PostForm("error_correction"); v != "" {
		ec, valid := models.ParseErrorCorrectionType(v)
		if !valid {
			sendError(c, http.StatusBadRequest, "INVALID_ERROR_CORRECTION", "Error correction must be none, hamming or rs")
			return config, false
		}
		config.ErrorCorrection = ec
	}

	if v := c.PostForm("encryption"); v != "" {
		enc, valid := models.ParseEncryptionType(v)
		if !valid {
			sendError(c, http.StatusBadRequest, "INVALID_ENCRYPTION", "Encryption must be none, fernet, aes or rsa")
			return config, false
		}
		config.Encryption = enc
	}

	if v := c.PostForm("key_derivation"); v != "" {
		kdf, valid := models.ParseKeyDerivationType(v)
		if !valid {
			sendError(c, http.StatusBadRequest, "INVALID_KEY_DERIVATION", "Key derivation must be none, pbkdf2 or scrypt")
			return config, false
		}
		config.KeyDerivation = kdf
	}

	config.RepeatData = c.PostForm("repeat_data") == "true"

	if config.Encryption != models.EncryptionNone && c.PostForm("passphrase") == "" {
		sendError(c, http.StatusBadRequest, "MISSING_PASSPHRASE", "Passphrase is required when encryption is enabled")
		return config, false
	}

	if err := config.Validate(); err != nil {
		sendError(c, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
		return config, false
	}

	return config, true
}

// readKeyMaterial reads optional RSA PEM uploads. For extraction the private
// key applies; for embedding the public key does.
func (h *Handlers) readKeyMaterial(c *gin.Context, encryption models.EncryptionType, decryption bool) (models.KeyMaterial, bool) {
	var material models.KeyMaterial
	if encryption != models.EncryptionRSA {
		return material, true
	}

	field := "public_key"
	if decryption {
		field = "private_key"
	}
	fileHeader, err := c.FormFile(field)
	if err != nil {
		// extraction of non-RSA embeds carries no key upload
		return material, true
	}
	file, err := fileHeader.Open()
	if err != nil {
		sendError(c, http.StatusInternalServerError, "PROCESSING_ERROR", "Failed to open key file")
		return material, false
	}
	defer file.Close()
	pemData, err := io.ReadAll(file)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "PROCESSING_ERROR", "Failed to read key file")
		return material, false
	}

	if decryption {
		material.PrivateKeyPEM = pemData
	} else {
		material.PublicKeyPEM = pemData
	}
	return material, true
}

// sendServiceError maps pipeline errors onto HTTP statuses.
func sendServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotWAV), errors.Is(err, models.ErrMalformedWAV),
		errors.Is(err, models.ErrNotSteganographic), errors.Is(err, models.ErrInvalidConfig):
		sendError(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, models.ErrPayloadTooLarge):
		sendError(c, http.StatusRequestEntityTooLarge, "INSUFFICIENT_CAPACITY", err.Error())
	case errors.Is(err, models.ErrInvalidKey), errors.Is(err, models.ErrAuthenticationFailed):
		sendError(c, http.StatusUnauthorized, "AUTHENTICATION_FAILED", err.Error())
	case errors.Is(err, models.ErrUncorrectableCodeword):
		sendError(c, http.StatusUnprocessableEntity, "UNCORRECTABLE_CODEWORD", err.Error())
	default:
		log.Printf("[ERROR] sendServiceError: %v", err)
		sendError(c, http.StatusInternalServerError, "PROCESSING_ERROR", err.Error())
	}
}

// sendError sends a standardized error response
func sendError(c *gin.Context, statusCode int, code string, message string) {
	errorResponse := models.ErrorResponse{
		Success: false,
		Error: models.ErrorDetail{
			Message: message,
			Details: map[string]interface{}{
				"code": code,
			},
		},
	}

	c.JSON(statusCode, errorResponse)
}
