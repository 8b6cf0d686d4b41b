package lambdaboot

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// ParameterAPI is the subset of the SSM client used to read parameters.
type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadBatchRoleARN returns current when already set, otherwise reads the
// role ARN from the SSM parameter paramName. Non-fatal: a missing parameter
// only disables batch submission, so it logs a warning and returns "".
func LoadBatchRoleARN(ctx context.Context, client ParameterAPI, current, paramName string) string {
	if current != "" || paramName == "" {
		return current
	}

	ssmStart := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(false),
	})
	if err != nil {
		log.Warn().Err(err).Str("param", paramName).Msg("Batch role ARN not found in SSM, batch submission disabled")
		return ""
	}
	if result.Parameter == nil {
		log.Warn().Str("param", paramName).Msg("Batch role ARN parameter is empty, batch submission disabled")
		return ""
	}

	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Batch role ARN loaded from SSM")
	return aws.ToString(result.Parameter.Value)
}
