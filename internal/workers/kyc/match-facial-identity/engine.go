// internal/workers/kyc/match-facial-identity/engine.go
package matchfacialidentity

import (
	"context"
	"errors"
	"time"

	kychttp "kyc-workers/internal/common/http"
)

// HTTPEngine calls an external face comparison service.
type HTTPEngine struct {
	endpoint string
	client   *kychttp.Client
}

type compareRequest struct {
	SourceImage string `json:"sourceImage"`
	TargetImage string `json:"targetImage"`
}

type compareResponse struct {
	Match *bool `json:"match"`
}

func NewHTTPEngine(endpoint string, timeout time.Duration) *HTTPEngine {
	return &HTTPEngine{endpoint: endpoint, client: kychttp.NewClient(timeout)}
}

func (e *HTTPEngine) Compare(ctx context.Context, sourcePath, targetPath string) (bool, error) {
	var resp compareResponse
	if err := e.client.PostJSON(ctx, e.endpoint, compareRequest{SourceImage: sourcePath, TargetImage: targetPath}, &resp); err != nil {
		return false, err
	}
	if resp.Match == nil {
		return false, errors.New("face comparison response missing match field")
	}
	return *resp.Match, nil
}
