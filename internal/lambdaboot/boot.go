// Package lambdaboot provides shared Lambda cold-start bootstrap logic.
//
// Every Lambda in the project needs some subset of: AWS config, Step
// Functions, Bedrock, SSM parameter fetch, and startup logging. Each Lambda's
// init() is a short composition of these helpers.
package lambdaboot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-productivity/internal/logging"
)

// Default SSM parameter paths.
const (
	DefaultGeminiKeyParam    = "/screen-productivity/prod/gemini-api-key"
	DefaultStateMachineParam = "/screen-productivity/prod/state-machine-arn"
)

// ParameterGetter is the subset of the SSM client used for parameter loads.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// AWSClients holds the core AWS SDK clients used across Lambdas.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitSFN creates a Step Functions client.
func InitSFN(cfg aws.Config) *sfn.Client {
	return sfn.NewFromConfig(cfg)
}

// InitBedrock creates a Bedrock runtime client.
func InitBedrock(cfg aws.Config) *bedrockruntime.Client {
	return bedrockruntime.NewFromConfig(cfg)
}

// LoadGeminiKey fetches the Gemini API key from SSM Parameter Store if not
// already set via GEMINI_API_KEY env var. Fatals on error.
func LoadGeminiKey(client ParameterGetter) string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	paramName := logging.EnvOrDefault("SSM_API_KEY_PARAM", DefaultGeminiKeyParam)
	key, err := GetParameter(context.Background(), client, paramName, true)
	if err != nil {
		log.Fatal().Err(err).Str("param", paramName).Msg("Failed to read API key from SSM")
	}
	os.Setenv("GEMINI_API_KEY", key)
	return key
}

// LoadStateMachineArn returns STATE_MACHINE_ARN, falling back to SSM when the
// env var is empty. Fatals when neither is available.
func LoadStateMachineArn(client ParameterGetter) string {
	if arn := os.Getenv("STATE_MACHINE_ARN"); arn != "" {
		return arn
	}
	paramName := logging.EnvOrDefault("SSM_STATE_MACHINE_PARAM", DefaultStateMachineParam)
	arn, err := GetParameter(context.Background(), client, paramName, false)
	if err != nil {
		log.Fatal().Err(err).Str("param", paramName).Msg("State machine ARN not configured")
	}
	return arn
}

// GetParameter reads one SSM parameter value.
func GetParameter(ctx context.Context, client ParameterGetter, name string, decrypt bool) (string, error) {
	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: aws.Bool(decrypt),
	})
	if err != nil {
		return "", err
	}
	if result.Parameter == nil {
		return "", fmt.Errorf("parameter %s has no value", name)
	}
	value := aws.ToString(result.Parameter.Value)
	log.Debug().Str("param", name).Dur("elapsed", time.Since(start)).Msg("Parameter loaded from SSM")
	return value, nil
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
