package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"skagen-studio-server/modules/common/config"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// NewClient - genai 클라이언트 생성
// GOOGLE_CLOUD_PROJECT가 있으면 Vertex AI, 없으면 Gemini API 키 사용
func NewClient(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	clientConfig := &genai.ClientConfig{}
	if cfg.GeminiTimeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.GeminiTimeout}
	}

	if !cfg.UseVertex() {
		clientConfig.APIKey = cfg.GeminiAPIKey
		clientConfig.Backend = genai.BackendGeminiAPI
		log.Info().Msg("✅ [Gemini] Using Gemini API key backend")
	} else {
		creds, err := vertexCredentials(cfg)
		if err != nil {
			return nil, err
		}
		clientConfig.Backend = genai.BackendVertexAI
		clientConfig.Project = cfg.GoogleCloudProject
		clientConfig.Location = cfg.GoogleCloudLocation
		clientConfig.Credentials = creds
		log.Info().
			Str("project", cfg.GoogleCloudProject).
			Str("location", cfg.GoogleCloudLocation).
			Msg("✅ [VertexAI] Client configured")
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// vertexCredentials resolves explicit service account credentials. A nil
// result lets genai fall back to Application Default Credentials.
func vertexCredentials(cfg *config.Config) (*auth.Credentials, error) {
	var credsJSON []byte

	// 1. VERTEXAI_CREDENTIALS_JSON (배포용)
	if cfg.VertexCredentialsJSON != "" {
		log.Info().Msg("✅ [VertexAI] Using VERTEXAI_CREDENTIALS_JSON from environment")
		credsJSON = []byte(cfg.VertexCredentialsJSON)
	} else if cfg.VertexCredentialsPath != "" {
		// 2. VERTEXAI_CREDENTIALS_PATH (로컬 테스트용)
		log.Info().Str("path", cfg.VertexCredentialsPath).Msg("✅ [VertexAI] Using credentials from file")
		data, err := os.ReadFile(cfg.VertexCredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		credsJSON = data
	} else {
		// 3. Application Default Credentials (ADC)
		log.Warn().Msg("⚠️  [VertexAI] No explicit credentials found, using Application Default Credentials")
		return nil, nil
	}

	if !json.Valid(credsJSON) {
		return nil, fmt.Errorf("invalid JSON credentials")
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: credsJSON,
		Scopes:          []string{cloudPlatformScope},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load Vertex AI credentials: %w", err)
	}
	return creds, nil
}
