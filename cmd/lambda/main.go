package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"

	"offer-wizard/handler"
	"offer-wizard/internal/integrations/paramstore"
	"offer-wizard/internal/integrations/platform"
	"offer-wizard/internal/repository"
	"offer-wizard/internal/usecase"
)

func main() {
	ctx := context.Background()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "offer-wizard").Logger()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv(log, "STATE_TABLE")
	baseURL := mustEnv(log, "PLATFORM_BASE_URL")
	tokenParam := mustEnv(log, "PLATFORM_TOKEN_PARAM")
	pacing := time.Duration(envInt("PACING_MS", 1000)) * time.Millisecond

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load AWS config")
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create SSM client")
	}
	tokens, err := paramstore.NewSecretSource(ssmClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token source")
	}

	store, err := repository.NewDynamoStore(awsdynamodb.NewFromConfig(cfg), stateTable)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create conversation store")
	}

	platformClient, err := platform.NewClient(baseURL, tokens, tokenParam)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create platform client")
	}

	// ---- Handler ----
	wizard, err := usecase.NewWizardService(platformClient, store, pacing)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create wizard service")
	}

	h, err := handler.NewHandler(wizard, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create handler")
	}

	lambda.Start(h.Handle)
}

func mustEnv(log zerolog.Logger, key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatal().Str("key", key).Msg("required environment variable is not set")
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
