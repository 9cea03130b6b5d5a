package registry

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ecr"
	"github.com/aws/aws-sdk-go/service/ecr/ecriface"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	fluxerr "github.com/fluxcd/seedy/pkg/errors"
	"github.com/fluxcd/seedy/pkg/image"
)

// Registry hands out credentials for pulling images.
type Registry interface {
	// Credentials for the registry belonging to the AWS account, in
	// the region given.
	Credentials(ctx context.Context, accountID, region string) (Credentials, error)
}

// ECR gets credentials from the AWS API. Tokens are fetched fresh
// each time, in the region of the image, since that is where the
// registry is (and events can come from any region).
type ECR struct {
	clientFor func(region string) ecriface.ECRAPI
	logger    log.Logger
}

// NewECR makes an ECR credentials source using the default AWS
// credential chain (environment, shared config, instance role).
func NewECR(logger log.Logger) (*ECR, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, err
	}
	return NewECRWithClients(func(region string) ecriface.ECRAPI {
		return ecr.New(sess, aws.NewConfig().WithRegion(region))
	}, logger), nil
}

// NewECRWithClients is for supplying the ECR client, e.g., for tests.
func NewECRWithClients(clientFor func(region string) ecriface.ECRAPI, logger log.Logger) *ECR {
	return &ECR{
		clientFor: clientFor,
		logger:    logger,
	}
}

func (r *ECR) Credentials(ctx context.Context, accountID, region string) (Credentials, error) {
	svc := r.clientFor(region)
	out, err := svc.GetAuthorizationTokenWithContext(ctx, &ecr.GetAuthorizationTokenInput{
		RegistryIds: aws.StringSlice([]string{accountID}),
	})
	if err != nil {
		return Credentials{}, classifyAWSError(err, "fetching ECR authorization token for account "+accountID+" in "+region)
	}

	host := image.ECRHost(accountID, region)
	for _, v := range out.AuthorizationData {
		if v == nil || v.AuthorizationToken == nil {
			continue
		}
		creds, err := ParseAuthToken(*v.AuthorizationToken)
		if err != nil {
			return Credentials{}, err
		}
		creds.Registry = host
		if v.ProxyEndpoint != nil {
			// Remove the https prefix
			creds.Registry = strings.TrimPrefix(*v.ProxyEndpoint, "https://")
		}
		level.Debug(r.logger).Log("info", "fetched ECR credentials", "registry", creds.Registry, "expires", aws.TimeValue(v.ExpiresAt))
		return creds, nil
	}
	return Credentials{}, fluxerr.New(fluxerr.Credential, "no authorization token returned for account %s in %s", accountID, region)
}

// Access problems won't go away by themselves; anything else might.
func classifyAWSError(err error, msg string) error {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case "AccessDeniedException", "AccessDenied", "UnrecognizedClientException", "InvalidClientTokenId":
			return fluxerr.Wrap(fluxerr.Permission, err, msg)
		}
	}
	return fluxerr.Wrap(fluxerr.Transport, err, msg)
}
