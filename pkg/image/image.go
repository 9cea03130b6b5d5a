package image

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"
	digest "github.com/opencontainers/go-digest"
)

const (
	// ECR registry URLs look like this:
	//
	//     <account-id>.dkr.ecr.<region>.amazonaws.com
	ecrHostFormat = "%s.dkr.ecr.%s.amazonaws.com"

	digestSeparator = "@"
)

// ECRHost gives the registry host for an ECR account in a region.
func ECRHost(accountID, region string) string {
	return fmt.Sprintf(ecrHostFormat, accountID, region)
}

// ECRRef gives the tagged (but not digested) reference to an image
// in ECR, e.g.,
//
//     123456789012.dkr.ecr.eu-north-1.amazonaws.com/team/app:latest
func ECRRef(accountID, region, repository, tag string) string {
	return fmt.Sprintf("%s/%s:%s", ECRHost(accountID, region), repository, tag)
}

// StripDigest removes everything from the first '@' onwards. Swarm
// records the resolved digest on the image it was told to run, e.g.,
// `app:latest@sha256:...`, so this recovers what was asked for.
func StripDigest(s string) string {
	if i := strings.Index(s, digestSeparator); i >= 0 {
		return s[:i]
	}
	return s
}

// WithDigest pins ref to the given digest. Any digest already on ref
// is replaced.
func WithDigest(ref string, d digest.Digest) string {
	return StripDigest(ref) + digestSeparator + string(d)
}

// Domain returns the registry host part of an image reference, or
// the empty string if the reference doesn't name one (e.g., it's a
// DockerHub image like `alpine:3.5` or `bittrance/ze-image:latest`)
// or can't be parsed.
func Domain(ref string) string {
	ref = StripDigest(ref)
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return ""
	}
	// Normalising fills in docker.io for images that don't say
	domain := reference.Domain(named)
	if !strings.HasPrefix(ref, domain+"/") {
		return ""
	}
	return domain
}
