package lambdautils

import (
	"context"
	"strings"

	"github.com/aws/aws-lambda-go/lambdacontext"
)

// LambdaMetaData stores details about the current lambda invocation and the
// function environment.
type LambdaMetaData struct {
	FunctionName       string
	FunctionVersion    string
	FunctionAlias      string
	LogGroupName       string
	LogStreamName      string
	MemoryLimitInMB    int
	RequestID          string
	InvokedFunctionArn string
	Context            *lambdacontext.LambdaContext
}

// GetLambdaMetaData returns MetaData extracted from the current lambda context.
// The invocation fields are left empty when ctx carries no lambda context.
func GetLambdaMetaData(ctx context.Context) LambdaMetaData {
	lm := LambdaMetaData{
		FunctionName:    lambdacontext.FunctionName,
		FunctionVersion: lambdacontext.FunctionVersion,
		LogGroupName:    lambdacontext.LogGroupName,
		LogStreamName:   lambdacontext.LogStreamName,
		MemoryLimitInMB: lambdacontext.MemoryLimitInMB,
	}

	lm.Context, _ = lambdacontext.FromContext(ctx)
	if lm.Context != nil {
		lm.RequestID = lm.Context.AwsRequestID
		lm.InvokedFunctionArn = lm.Context.InvokedFunctionArn
		lm.FunctionAlias = aliasFromArn(lm.InvokedFunctionArn)
	}

	return lm
}

// aliasFromArn returns the qualifier of a qualified function arn, e.g. the
// "PRODUCTION" of arn:aws:lambda:us-east-1:1234:function:fname:PRODUCTION.
func aliasFromArn(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) != 8 {
		return ""
	}

	return parts[7]
}
